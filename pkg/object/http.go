package object

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ReadRelay/pkg/version"

	"github.com/pkg/errors"
)

var UserAgent = "ReadRelay-" + version.Version()

// httpStore fetches documents from any HTTP server that honors Range
// requests; progress records live under a progress/ prefix as JSON files.
type httpStore struct {
	base   string
	client *http.Client
}

func newHTTPStore(endpoint string) (Store, error) {
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "http://" + endpoint
	}
	return &httpStore{
		base:   strings.TrimRight(endpoint, "/"),
		client: &http.Client{Timeout: time.Minute},
	}, nil
}

func (h *httpStore) String() string { return h.base + "/" }

func (h *httpStore) docURL(id string) string {
	return h.base + "/" + id
}

func (h *httpStore) recordURL(id string) string {
	return h.base + "/progress/" + id + ".json"
}

func (h *httpStore) FetchRange(ctx context.Context, id string, start, end int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.docURL(id), nil)
	if err != nil {
		return nil, &FetchError{id, err}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{id, err}
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusPartialContent:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &FetchError{id, err}
		}
		return data, nil
	case http.StatusOK:
		// server ignored the Range header, slice the full body
		full, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &FetchError{id, err}
		}
		if start >= int64(len(full)) {
			return nil, &FetchError{id, errors.Errorf("offset %d out of %d bytes", start, len(full))}
		}
		if end >= int64(len(full)) {
			end = int64(len(full)) - 1
		}
		return full[start : end+1], nil
	default:
		return nil, &FetchError{id, errors.Errorf("status %s", resp.Status)}
	}
}

func (h *httpStore) ReadRecord(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.recordURL(id), nil)
	if err != nil {
		return nil, &FetchError{id, err}
	}
	req.Header.Set("User-Agent", UserAgent)
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{id, err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{id, errors.Errorf("status %s", resp.Status)}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{id, err}
	}
	return data, nil
}

func (h *httpStore) WriteRecord(ctx context.Context, id string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, h.recordURL(id), bytes.NewReader(data))
	if err != nil {
		return &WriteError{id, err}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		return &WriteError{id, err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &WriteError{id, errors.Errorf("status %s", resp.Status)}
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func init() {
	RegisterStore("http", newHTTPStore)
}
