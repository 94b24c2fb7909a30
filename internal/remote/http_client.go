package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"notes-sync-client/internal/domain"

	"github.com/tidwall/gjson"
)

const (
	// SessionCookie carries the session token on every request.
	SessionCookie = "serviceToken"

	pageSize     = 200
	maxBodyBytes = 64 << 20
)

type HTTPClient struct {
	baseURL string
	http    *http.Client
	token   func() string
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a Client speaking JSON over HTTP. token is consulted on every
// request so a refreshed session takes effect without rebuilding the client.
func NewHTTPClient(baseURL string, timeout time.Duration, token func() string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		token:   token,
	}
}

func (c *HTTPClient) ListPage(ctx context.Context, cursor string) (*Page, error) {
	return c.listPage(ctx, "/notes", cursor)
}

func (c *HTTPClient) ListPrivatePage(ctx context.Context, cursor string) (*Page, error) {
	return c.listPage(ctx, "/notes/private", cursor)
}

func (c *HTTPClient) listPage(ctx context.Context, path, cursor string) (*Page, error) {
	q := url.Values{"limit": {strconv.Itoa(pageSize)}}
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	body, err := c.do(ctx, http.MethodGet, path, q, nil, "")
	if err != nil {
		return nil, err
	}
	return decodePage(body)
}

func (c *HTTPClient) ListChanges(ctx context.Context, syncTag string) (*ChangePage, error) {
	body, err := c.do(ctx, http.MethodGet, "/changes", url.Values{"sync_tag": {syncTag}}, nil, "")
	if err != nil {
		return nil, err
	}
	return decodeChanges(body)
}

func (c *HTTPClient) FetchDetail(ctx context.Context, id string) (*domain.Note, error) {
	body, err := c.do(ctx, http.MethodGet, "/notes/"+url.PathEscape(id), nil, nil, "")
	if err != nil {
		return nil, err
	}
	return decodeNote(body)
}

func (c *HTTPClient) CreateNote(ctx context.Context, note *domain.Note) (*CreateResult, error) {
	payload, err := encodeNote(note, "")
	if err != nil {
		return nil, fmt.Errorf("encode note: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/notes", nil, payload, "application/json")
	if err != nil {
		return nil, err
	}
	return decodeCreated(body)
}

func (c *HTTPClient) UpdateNote(ctx context.Context, id, tag string, note *domain.Note) (string, error) {
	payload, err := encodeNote(note, tag)
	if err != nil {
		return "", fmt.Errorf("encode note: %w", err)
	}

	body, err := c.do(ctx, http.MethodPut, "/notes/"+url.PathEscape(id), nil, payload, "application/json")
	if err != nil {
		return "", err
	}
	return decodeTag(body)
}

func (c *HTTPClient) DeleteNote(ctx context.Context, id, tag string, purge bool) error {
	q := url.Values{"tag": {tag}, "purge": {strconv.FormatBool(purge)}}
	_, err := c.do(ctx, http.MethodDelete, "/notes/"+url.PathEscape(id), q, nil, "")
	return err
}

func (c *HTTPClient) CreateFolder(ctx context.Context, folder *domain.Folder) (*CreateResult, error) {
	payload, err := encodeFolder(folder, "")
	if err != nil {
		return nil, fmt.Errorf("encode folder: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/folders", nil, payload, "application/json")
	if err != nil {
		return nil, err
	}
	return decodeCreated(body)
}

func (c *HTTPClient) RenameFolder(ctx context.Context, id, tag, name string) (string, error) {
	payload, err := encodeFolder(&domain.Folder{ID: id, Name: name}, tag)
	if err != nil {
		return "", fmt.Errorf("encode folder: %w", err)
	}

	body, err := c.do(ctx, http.MethodPut, "/folders/"+url.PathEscape(id), nil, payload, "application/json")
	if err != nil {
		return "", err
	}
	return decodeTag(body)
}

func (c *HTTPClient) DeleteFolder(ctx context.Context, id, tag string) error {
	_, err := c.do(ctx, http.MethodDelete, "/folders/"+url.PathEscape(id), url.Values{"tag": {tag}}, nil, "")
	return err
}

func (c *HTTPClient) DownloadAsset(ctx context.Context, id string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/assets/"+url.PathEscape(id), nil, nil, "")
}

func (c *HTTPClient) UploadAsset(ctx context.Context, name string, data []byte) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/assets", url.Values{"name": {name}}, data, "application/octet-stream")
	if err != nil {
		return "", err
	}

	id := gjson.GetBytes(body, fieldID).String()
	if id == "" {
		return "", malformed("upload response without id")
	}
	return id, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, payload []byte, contentType string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != nil {
		if token := c.token(); token != "" {
			req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, networkError(err)
	}

	if err := statusError(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return body, nil
}

func statusError(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuthExpired
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusConflict || code == http.StatusPreconditionFailed:
		return &ConflictError{CurrentTag: gjson.GetBytes(body, "current_tag").String()}
	case code >= 500:
		return networkError(errors.New(http.StatusText(code)))
	default:
		return fmt.Errorf("remote: unexpected status %d", code)
	}
}
