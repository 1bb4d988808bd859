package source

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/postgres"
)

func collect(t *testing.T, s Source) []Document {
	t.Helper()
	var docs []Document
	if err := s.Each(context.Background(), func(d Document) error {
		docs = append(docs, d)
		return nil
	}); err != nil {
		t.Fatalf("Each: %v", err)
	}
	return docs
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirReadsMatchingFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2.txt", "second")
	writeFile(t, dir, "1.txt", "first")
	writeFile(t, dir, "notes.md", "skip me")
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	docs := collect(t, NewDir(dir, ""))
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	if docs[0].ID != "1.txt" || docs[0].Text != "first" || docs[1].ID != "2.txt" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestDirUnreadableDocumentNamed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.txt", "fine")
	if err := os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "broken.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := NewDir(dir, ".txt").Each(context.Background(), func(Document) error { return nil })
	var docErr *DocumentError
	if !errors.As(err, &docErr) || docErr.ID != "broken.txt" {
		t.Fatalf("err = %v, want DocumentError for broken.txt", err)
	}
	if !errors.Is(err, apperrors.ErrDocumentUnreadable) || !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err should match ErrDocumentUnreadable and fs.ErrNotExist: %v", err)
	}
}

func TestDirMissingDirectory(t *testing.T) {
	err := NewDir(filepath.Join(t.TempDir(), "nope"), ".txt").Each(context.Background(), func(Document) error { return nil })
	if err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestMemoryStopsOnCallbackError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := Memory{{ID: "a"}, {ID: "b"}}.Each(context.Background(), func(Document) error {
		calls++
		return stop
	})
	if err != stop || calls != 1 {
		t.Errorf("err = %v calls = %d", err, calls)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := (Memory{{ID: "a"}}).Each(ctx, func(Document) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPostgresStreamsRowsReadOnly(t *testing.T) {
	drv := &fakeDriver{rows: [][2]string{{"10", "how to sort in go"}, {"11", "python lists"}}}
	sql.Register("fake-docs", drv)
	db, err := sql.Open("fake-docs", "")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	src, err := NewPostgres(postgres.NewFromDB(db), "SELECT id, body FROM documents")
	if err != nil {
		t.Fatal(err)
	}
	docs := collect(t, src)
	if len(docs) != 2 || docs[0].ID != "10" || docs[1].Text != "python lists" {
		t.Errorf("docs = %+v", docs)
	}
	if !drv.sawReadOnly || !drv.committed {
		t.Errorf("readOnly=%v committed=%v", drv.sawReadOnly, drv.committed)
	}

	if _, err := NewPostgres(postgres.NewFromDB(db), ""); err == nil {
		t.Error("empty query should be rejected")
	}
}

// fakeDriver serves a single two-column result set for any query.
type fakeDriver struct {
	rows        [][2]string
	sawReadOnly bool
	committed   bool
}

func (d *fakeDriver) Open(string) (driver.Conn, error) { return &fakeConn{d: d}, nil }

type fakeConn struct{ d *fakeDriver }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *fakeConn) Close() error                        { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)           { return c, nil }

func (c *fakeConn) BeginTx(_ context.Context, opts driver.TxOptions) (driver.Tx, error) {
	c.d.sawReadOnly = opts.ReadOnly
	return c, nil
}

func (c *fakeConn) Commit() error   { c.d.committed = true; return nil }
func (c *fakeConn) Rollback() error { return nil }

func (c *fakeConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &fakeRows{rows: c.d.rows}, nil
}

type fakeRows struct {
	rows [][2]string
	i    int
}

func (r *fakeRows) Columns() []string { return []string{"id", "text"} }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.rows) {
		return io.EOF
	}
	dest[0] = r.rows[r.i][0]
	dest[1] = r.rows[r.i][1]
	r.i++
	return nil
}
