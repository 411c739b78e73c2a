package datatable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/km-arc/go-managers/framework/logging"
)

// ErrLoaderMissing is returned when no base URL has been configured.
var ErrLoaderMissing = errors.New("datatable: loader has no base URL")

// RequestError reports a sheet request that completed with a non-2xx status.
type RequestError struct {
	Sheet      string
	URL        string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("datatable: sheet %q: %s returned %d %s",
		e.Sheet, e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Loader fetches sheets published as JSON arrays at {baseURL}?sheet={name}.
type Loader struct {
	mu      sync.RWMutex
	baseURL string

	client *http.Client
	logger *slog.Logger
}

// NewLoader creates a loader. A nil client gets a 30s timeout client.
func NewLoader(baseURL string, client *http.Client, logger *slog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{baseURL: baseURL, client: client, logger: logging.OrDiscard(logger)}
}

// SetURL replaces the base URL.
func (l *Loader) SetURL(u string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.baseURL = u
}

// URL returns the base URL.
func (l *Loader) URL() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseURL
}

// Fetch downloads sheet and returns it wrapped as {"items": <array>}.
func (l *Loader) Fetch(ctx context.Context, sheet string) ([]byte, error) {
	target, err := l.sheetURL(sheet)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("datatable: build request for %q: %w", sheet, err)
	}
	req.Header.Set("Accept", "application/json")

	l.logger.Debug("🔄 Loading sheet.", "sheet", sheet)
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datatable: fetch %q: %w", sheet, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("datatable: read %q: %w", sheet, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Sheet: sheet, URL: target, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return wrapItems(body), nil
}

// LoadTable fetches sheet and decodes the wrapped document into out.
//
//	var t struct{ Items []Unit `json:"items"` }
//	err := loader.LoadTable(ctx, "Units", &t)
func (l *Loader) LoadTable(ctx context.Context, sheet string, out any) error {
	raw, err := l.Fetch(ctx, sheet)
	if err != nil {
		return err
	}
	return decode(sheet, raw, out)
}

func (l *Loader) sheetURL(sheet string) (string, error) {
	base := l.URL()
	if base == "" {
		return "", ErrLoaderMissing
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("datatable: invalid base URL %q: %w", base, err)
	}
	q := u.Query()
	q.Set("sheet", sheet)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func wrapItems(body []byte) []byte {
	body = bytes.TrimSpace(body)
	out := make([]byte, 0, len(body)+10)
	out = append(out, `{"items":`...)
	out = append(out, body...)
	return append(out, '}')
}

func decode(sheet string, raw []byte, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("datatable: decode %q: %w", sheet, err)
	}
	return nil
}
