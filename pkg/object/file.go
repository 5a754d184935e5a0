package object

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// fileStore serves documents from a local directory, mostly useful for
// development and for syncing against a mounted network share.
type fileStore struct {
	dir string
}

func (d *fileStore) String() string { return "file://" + d.dir }

func (d *fileStore) path(id string) string {
	return filepath.Join(d.dir, strings.TrimLeft(id, "/"))
}

func (d *fileStore) FetchRange(ctx context.Context, id string, start, end int64) ([]byte, error) {
	f, err := os.Open(d.path(id))
	if err != nil {
		return nil, &FetchError{id, err}
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, &FetchError{id, err}
	}
	if end >= st.Size() {
		end = st.Size() - 1
	}
	if start > end {
		return nil, &FetchError{id, io.ErrUnexpectedEOF}
	}
	data := make([]byte, end-start+1)
	if _, err = f.ReadAt(data, start); err != nil {
		return nil, &FetchError{id, err}
	}
	return data, nil
}

func (d *fileStore) recordPath(id string) string {
	return d.path(id) + ".progress"
}

func (d *fileStore) ReadRecord(ctx context.Context, id string) ([]byte, error) {
	data, err := os.ReadFile(d.recordPath(id))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &FetchError{id, err}
	}
	return data, nil
}

func (d *fileStore) WriteRecord(ctx context.Context, id string, data []byte) error {
	p := d.recordPath(id)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return &WriteError{id, err}
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return &WriteError{id, err}
	}
	return nil
}

func init() {
	RegisterStore("file", func(endpoint string) (Store, error) {
		endpoint = strings.TrimPrefix(endpoint, "file://")
		if err := os.MkdirAll(endpoint, 0755); err != nil {
			return nil, err
		}
		return &fileStore{endpoint}, nil
	})
}
