package transfer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kadirbelkuyu/docbridge/internal/document"
)

// DocumentReader yields the documents of one collection in order and
// returns io.EOF after the last one.
type DocumentReader interface {
	Next() (*document.Document, error)
	Close() error
}

// Entry is one collection offered by a Source. Open is only called when the
// collection matches a declared table.
type Entry struct {
	Name   string
	Origin string
	Total  int64
	Open   func(ctx context.Context) (DocumentReader, error)
}

type Source interface {
	Walk(ctx context.Context, fn func(Entry) error) error
	Close() error
}

// DirectorySource reads <table>.<ext> files, each holding a JSON array of
// documents, anywhere below Root.
type DirectorySource struct {
	Root string
}

func NewDirectorySource(root string) *DirectorySource {
	return &DirectorySource{Root: root}
}

func (s *DirectorySource) Walk(ctx context.Context, fn func(Entry) error) error {
	info, err := os.Stat(s.Root)
	if err != nil {
		return fmt.Errorf("cannot read import directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("import path %s is not a directory", s.Root)
	}

	return filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		base := d.Name()
		return fn(Entry{
			Name:   strings.TrimSuffix(base, filepath.Ext(base)),
			Origin: path,
			Total:  -1,
			Open: func(context.Context) (DocumentReader, error) {
				return openArrayFile(path)
			},
		})
	})
}

func (s *DirectorySource) Close() error {
	return nil
}

type fileReader struct {
	file   *os.File
	reader *document.ArrayReader
}

func openArrayFile(path string) (*fileReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	reader, err := document.NewArrayReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &fileReader{file: file, reader: reader}, nil
}

func (r *fileReader) Next() (*document.Document, error) {
	return r.reader.Next()
}

func (r *fileReader) Close() error {
	return r.file.Close()
}
