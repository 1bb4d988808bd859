package scan

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/source"
	"github.com/Adithya-Monish-Kumar-K/stacksearch/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/stacksearch/pkg/errors"
)

func TestSequential(t *testing.T) {
	docs := source.Memory{
		{ID: "1.txt", Text: "How do I sort a dictionary in Python?"},
		{ID: "2.txt", Text: "Sorting algorithms compared"},
		{ID: "3.txt", Text: "Java streams"},
		{ID: "4.txt", Text: "The resort was lovely"},
	}
	res, err := Sequential(context.Background(), docs, "Sorting", tokenizer.MustNew())
	if err != nil {
		t.Fatal(err)
	}
	if res.Stem != "sort" {
		t.Errorf("stem = %q", res.Stem)
	}
	// Substring matching also finds "resort".
	want := []string{"1.txt", "2.txt", "4.txt"}
	if !reflect.DeepEqual(res.DocIDs, want) {
		t.Errorf("DocIDs = %v, want %v", res.DocIDs, want)
	}
	if res.Scanned != 4 {
		t.Errorf("scanned = %d", res.Scanned)
	}
}

func TestSequentialWithoutStemmer(t *testing.T) {
	docs := source.Memory{{ID: "a", Text: "Running late"}, {ID: "b", Text: "run"}}
	res, err := Sequential(context.Background(), docs, "RUNNING", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.DocIDs, []string{"a"}) {
		t.Errorf("DocIDs = %v", res.DocIDs)
	}
}

func TestSequentialEmptyTerm(t *testing.T) {
	res, err := Sequential(context.Background(), source.Memory{{ID: "a", Text: "x"}}, "  ", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.DocIDs) != 0 || res.Scanned != 0 {
		t.Errorf("res = %+v", res)
	}
}

func TestSequentialDirSource(t *testing.T) {
	dir := t.TempDir()
	for name, text := range map[string]string{
		"1.txt":   "Python lists",
		"2.txt":   "Go slices",
		"x.md":    "python but wrong extension",
		"3.txt":   "More PYTHON",
		"sub.txt": "",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	res, err := Sequential(context.Background(), source.NewDir(dir, ".txt"), "python", tokenizer.MustNew())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.DocIDs, []string{"1.txt", "3.txt"}) {
		t.Errorf("DocIDs = %v", res.DocIDs)
	}

	if err := os.Symlink(filepath.Join(dir, "missing"), filepath.Join(dir, "broken.txt")); err != nil {
		t.Skip("symlinks unavailable:", err)
	}
	_, err = Sequential(context.Background(), source.NewDir(dir, ".txt"), "python", nil)
	if !errors.Is(err, apperrors.ErrDocumentUnreadable) {
		t.Errorf("err = %v, want ErrDocumentUnreadable", err)
	}
}
