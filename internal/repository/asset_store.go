package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

var ErrInvalidAssetID = errors.New("invalid asset id")

// AssetStore keeps downloaded note attachments on the local filesystem.
type AssetStore interface {
	Put(id string, data []byte) error
	Get(id string) ([]byte, error)
	Exists(id string) (bool, error)
	Delete(id string) error
}

type assetStore struct {
	fs afero.Fs
}

// NewAssetStore roots the store at dir on the OS filesystem.
func NewAssetStore(dir string) (AssetStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset dir: %w", err)
	}
	return NewAssetStoreFs(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

func NewAssetStoreFs(fs afero.Fs) AssetStore {
	return &assetStore{fs: fs}
}

func assetPath(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetID, id)
	}
	return filepath.Join("/", id), nil
}

func (s *assetStore) Put(id string, data []byte) error {
	p, err := assetPath(id)
	if err != nil {
		return err
	}

	tmp := p + ".part"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write asset %s: %w", id, err)
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		return fmt.Errorf("failed to commit asset %s: %w", id, err)
	}
	return nil
}

func (s *assetStore) Get(id string) ([]byte, error) {
	p, err := assetPath(id)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(s.fs, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *assetStore) Exists(id string) (bool, error) {
	p, err := assetPath(id)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

func (s *assetStore) Delete(id string) error {
	p, err := assetPath(id)
	if err != nil {
		return err
	}

	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete asset %s: %w", id, err)
	}
	return nil
}
