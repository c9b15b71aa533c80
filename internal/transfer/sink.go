package transfer

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kadirbelkuyu/docbridge/internal/document"
)

type DocumentWriter interface {
	Write(doc *document.Document) error
	Close() error
}

// Sink receives exported collections. Nothing becomes visible to readers of
// the target until Commit succeeds; Abort discards pending output.
type Sink interface {
	Create(ctx context.Context, collection string) (DocumentWriter, error)
	Commit(ctx context.Context) ([]CollectionInfo, error)
	Abort() error
	Close() error
}

type CollectionInfo struct {
	Collection  string
	Location    string
	Documents   int64
	Size        int64
	Checksum    string
	CompletedAt time.Time
}

// DirectorySink writes <collection>.json files into Dir. Files are staged
// under temporary names and renamed into place on Commit.
type DirectorySink struct {
	Dir     string
	pending []*fileWriter
}

func NewDirectorySink(dir string) *DirectorySink {
	return &DirectorySink{Dir: dir}
}

func (s *DirectorySink) Create(_ context.Context, collection string) (DocumentWriter, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	file, err := os.CreateTemp(s.Dir, "."+collection+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create export file: %w", err)
	}

	w := &fileWriter{
		collection: collection,
		file:       file,
		buf:        bufio.NewWriter(file),
		target:     filepath.Join(s.Dir, collection+".json"),
	}
	if _, err := w.buf.WriteString("["); err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, err
	}
	s.pending = append(s.pending, w)
	return w, nil
}

func (s *DirectorySink) Commit(context.Context) ([]CollectionInfo, error) {
	infos := make([]CollectionInfo, 0, len(s.pending))
	for _, w := range s.pending {
		if !w.closed {
			if err := w.Close(); err != nil {
				return nil, err
			}
		}
		if err := os.Rename(w.file.Name(), w.target); err != nil {
			return nil, fmt.Errorf("failed to move %s into place: %w", w.target, err)
		}

		info, err := fileInfo(w.target)
		if err != nil {
			return nil, err
		}
		info.Collection = w.collection
		info.Documents = w.count
		infos = append(infos, *info)
	}
	s.pending = nil
	return infos, nil
}

func (s *DirectorySink) Abort() error {
	var firstErr error
	for _, w := range s.pending {
		if !w.closed {
			w.file.Close()
		}
		if err := os.Remove(w.file.Name()); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	s.pending = nil
	return firstErr
}

func (s *DirectorySink) Close() error {
	return nil
}

type fileWriter struct {
	collection string
	file       *os.File
	buf        *bufio.Writer
	target     string
	count      int64
	closed     bool
}

func (w *fileWriter) Write(doc *document.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	sep := "\n"
	if w.count > 0 {
		sep = ",\n"
	}
	if _, err := w.buf.WriteString(sep); err != nil {
		return err
	}
	if _, err := w.buf.Write(data); err != nil {
		return err
	}
	w.count++
	return nil
}

func (w *fileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if _, err := w.buf.WriteString("\n]\n"); err != nil {
		w.file.Close()
		return err
	}
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush %s: %w", w.target, err)
	}
	return w.file.Close()
}

func fileInfo(path string) (*CollectionInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export metadata: %w", err)
	}

	checksum, err := fileChecksum(path)
	if err != nil {
		return nil, err
	}

	return &CollectionInfo{
		Location:    path,
		Size:        info.Size(),
		Checksum:    checksum,
		CompletedAt: time.Now(),
	}, nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open export file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to calculate checksum: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}
