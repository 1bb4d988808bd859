package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Dir reads every regular file or symlink with the given extension directly
// inside a directory. The file name (extension included) is the document ID.
type Dir struct {
	Path string
	Ext  string
}

func NewDir(path, ext string) *Dir {
	if ext == "" {
		ext = ".txt"
	}
	return &Dir{Path: path, Ext: ext}
}

func (d *Dir) Name() string { return "dir:" + d.Path }

// Files lists matching file names in lexical order.
func (d *Dir) Files() ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if err != nil {
		return nil, fmt.Errorf("reading documents directory %s: %w", d.Path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		mode := e.Type()
		if (mode.IsRegular() || mode&fs.ModeSymlink != 0) && strings.HasSuffix(e.Name(), d.Ext) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func (d *Dir) Each(ctx context.Context, fn func(Document) error) error {
	names, err := d.Files()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := os.ReadFile(filepath.Join(d.Path, name))
		if err != nil {
			return &DocumentError{ID: name, Err: err}
		}
		if err := fn(Document{ID: name, Text: string(data)}); err != nil {
			return err
		}
	}
	return nil
}
