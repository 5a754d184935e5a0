package chunk

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"ReadRelay/pkg/compress"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// sqliteStore persists chunks across restarts. Content is compressed at
// rest with the configured compressor; offsets and timestamps stay plain
// so listings never need to decompress.
type sqliteStore struct {
	db   *sql.DB
	comp compress.Compressor
}

// OpenSqlite opens or creates the chunk database at the given path.
func OpenSqlite(path string, comp compress.Compressor) (Store, error) {
	if comp == nil {
		comp = compress.NewCompressor("none")
	}
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "create cache directory")
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	s := &sqliteStore{db, comp}
	if err = s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize schema")
	}
	return s, nil
}

func (s *sqliteStore) createSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chunks (
			doc_id    TEXT    NOT NULL,
			idx       INTEGER NOT NULL,
			start_off INTEGER NOT NULL,
			end_off   INTEGER NOT NULL,
			raw_size  INTEGER NOT NULL,
			content   BLOB    NOT NULL,
			cached_at INTEGER NOT NULL,
			PRIMARY KEY (doc_id, idx)
		)`)
	return err
}

func (s *sqliteStore) Get(docID string, index int64) (*Chunk, error) {
	var c = Chunk{DocumentID: docID, Index: index}
	var rawSize int
	var blob []byte
	var cachedAt int64
	err := s.db.QueryRow(
		"SELECT start_off, end_off, raw_size, content, cached_at FROM chunks WHERE doc_id = ? AND idx = ?",
		docID, index).Scan(&c.Start, &c.End, &rawSize, &blob, &cachedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get chunk %s/%d", docID, index)
	}
	c.CachedAt = time.Unix(0, cachedAt)
	c.Content = make([]byte, rawSize)
	if n, err := s.comp.Decompress(c.Content, blob); err != nil {
		return nil, errors.Wrapf(err, "decompress chunk %s/%d", docID, index)
	} else if n != rawSize {
		return nil, errors.Errorf("chunk %s/%d: decompressed %d of %d bytes", docID, index, n, rawSize)
	}
	return &c, nil
}

func (s *sqliteStore) Put(c *Chunk) error {
	buf := make([]byte, s.comp.CompressBound(len(c.Content)))
	n, err := s.comp.Compress(buf, c.Content)
	if err != nil {
		return errors.Wrapf(err, "compress chunk %s/%d", c.DocumentID, c.Index)
	}
	_, err = s.db.Exec(`
		INSERT INTO chunks (doc_id, idx, start_off, end_off, raw_size, content, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id, idx) DO UPDATE SET
			start_off = excluded.start_off, end_off = excluded.end_off, raw_size = excluded.raw_size,
			content = excluded.content, cached_at = excluded.cached_at`,
		c.DocumentID, c.Index, c.Start, c.End, len(c.Content), buf[:n], c.CachedAt.UnixNano())
	return errors.Wrapf(err, "put chunk %s/%d", c.DocumentID, c.Index)
}

func (s *sqliteStore) Delete(docID string, index int64) error {
	_, err := s.db.Exec("DELETE FROM chunks WHERE doc_id = ? AND idx = ?", docID, index)
	return errors.Wrapf(err, "delete chunk %s/%d", docID, index)
}

func (s *sqliteStore) ListAll() ([]*Chunk, error) {
	rows, err := s.db.Query("SELECT doc_id, idx, start_off, end_off, cached_at FROM chunks")
	if err != nil {
		return nil, errors.Wrap(err, "list chunks")
	}
	defer rows.Close()
	var all []*Chunk
	for rows.Next() {
		var c Chunk
		var cachedAt int64
		if err = rows.Scan(&c.DocumentID, &c.Index, &c.Start, &c.End, &cachedAt); err != nil {
			return nil, err
		}
		c.CachedAt = time.Unix(0, cachedAt)
		all = append(all, &c)
	}
	return all, rows.Err()
}

func (s *sqliteStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM chunks")
	return errors.Wrap(err, "clear chunks")
}

func (s *sqliteStore) Close() error { return s.db.Close() }
