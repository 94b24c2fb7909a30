package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kivik/kivik/v4"
)

var ErrNotFound = errors.New("not found")

const (
	docTypeNote            = "note"
	docTypeFolder          = "folder"
	docTypeOperation       = "operation"
	docTypePendingDeletion = "pending_deletion"
	docTypeSyncStatus      = "sync_status"

	// Mango defaults to 25 rows when no limit is given.
	findLimit = 100000
)

func docID(docType, id string) string {
	return fmt.Sprintf("%s:%s", docType, id)
}

// EnsureDB creates the database if it does not exist yet.
func EnsureDB(ctx context.Context, client *kivik.Client, name string) (bool, error) {
	exists, err := client.DBExists(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check database existence: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := client.CreateDB(ctx, name); err != nil {
		return false, fmt.Errorf("failed to create database: %w", err)
	}
	return true, nil
}

type store struct {
	db *kivik.DB
}

type revDoc struct {
	ID      string `json:"_id"`
	Rev     string `json:"_rev,omitempty"`
	Deleted bool   `json:"_deleted,omitempty"`
}

func isNotFound(err error) bool {
	return kivik.HTTPStatus(err) == http.StatusNotFound
}

// get scans the document into v, mapping a missing document to ErrNotFound.
func (s store) get(ctx context.Context, id string, v any) error {
	if err := s.db.Get(ctx, id).ScanDoc(v); err != nil {
		if isNotFound(err) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// rev returns the current revision of a document, or "" when it does not exist.
func (s store) rev(ctx context.Context, id string) (string, error) {
	var doc revDoc
	err := s.get(ctx, id, &doc)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return doc.Rev, err
}

func (s store) put(ctx context.Context, id string, doc any) error {
	_, err := s.db.Put(ctx, id, doc)
	return err
}

// remove deletes a document. Deleting a missing document is not an error.
func (s store) remove(ctx context.Context, id string) error {
	rev, err := s.rev(ctx, id)
	if err != nil {
		return err
	}
	if rev == "" {
		return nil
	}
	_, err = s.db.Delete(ctx, id, rev)
	if isNotFound(err) {
		return nil
	}
	return err
}

func (s store) find(ctx context.Context, selector map[string]interface{}, scan func(rows *kivik.ResultSet) error) error {
	query := map[string]interface{}{
		"selector": selector,
		"limit":    findLimit,
	}

	rows := s.db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// bulk writes docs in a single request and fails if any of them was rejected.
func (s store) bulk(ctx context.Context, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}

	results, err := s.db.BulkDocs(ctx, docs)
	if err != nil {
		return err
	}

	var errs []error
	for _, r := range results {
		if r.Error != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.ID, r.Error))
		}
	}
	return errors.Join(errs...)
}

// purge deletes every document matching selector in one bulk request.
func (s store) purge(ctx context.Context, selector map[string]interface{}) (int, error) {
	var stubs []interface{}
	err := s.find(ctx, selector, func(rows *kivik.ResultSet) error {
		var doc revDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return err
		}
		stubs = append(stubs, revDoc{ID: doc.ID, Rev: doc.Rev, Deleted: true})
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stubs), s.bulk(ctx, stubs)
}
