package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPStore PATCHes records to a history service at <base>/game/<code>.
type HTTPStore struct {
	base        string
	client      *http.Client
	adminSecret string
}

// NewHTTPStore creates a store for the history service rooted at base.
func NewHTTPStore(base, adminSecret string) *HTTPStore {
	return &HTTPStore{
		base:        strings.TrimRight(base, "/"),
		adminSecret: adminSecret,
		client:      &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *HTTPStore) Save(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	endpoint := s.base + "/game/" + url.PathEscape(rec.Code)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.adminSecret != "" {
		req.Header.Set("X-Admin-Secret", s.adminSecret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("patch %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("patch %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	return nil
}
