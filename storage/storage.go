package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"todo-api/domain"
)

// FileStore persists the lists document as a single JSON file. Every write
// replaces the whole file; concurrent writers in different processes race and
// the last write wins.
type FileStore struct {
	path string
	log  *log.Logger
}

// NewFileStore creates a FileStore for the given path. A nil logger falls back
// to the logrus standard logger.
func NewFileStore(path string, logger *log.Logger) *FileStore {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &FileStore{path: path, log: logger}
}


// Read loads the document. A missing file is created holding an empty
// document; a malformed file reads as an empty document.
func (s *FileStore) Read() (domain.Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		doc := domain.Document{Lists: []domain.List{}}
		if err := s.Write(doc); err != nil {
			return domain.Document{}, err
		}
		return doc, nil
	}
	if err != nil {
		return domain.Document{}, &domain.StorageError{Op: "read", Path: s.path, Err: err}
	}

	var doc domain.Document
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		s.log.WithError(err).WithField("path", s.path).Warn("malformed lists file, serving empty document")
		return domain.Document{Lists: []domain.List{}}, nil
	}
	normalize(&doc)
	return doc, nil
}

// Write serialises doc and replaces the file.
func (s *FileStore) Write(doc domain.Document) error {
	if doc.Lists == nil {
		doc.Lists = []domain.List{}
	}
	return writeJSON(s.path, doc)
}

func normalize(doc *domain.Document) {
	if doc.Lists == nil {
		doc.Lists = []domain.List{}
	}
	for i := range doc.Lists {
		if doc.Lists[i].Tasks == nil {
			doc.Lists[i].Tasks = []domain.Task{}
		}
	}
}

func writeJSON(path string, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return &domain.StorageError{Op: "encode", Path: path, Err: err}
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return &domain.StorageError{Op: "write", Path: path, Err: err}
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &domain.StorageError{Op: "write", Path: path, Err: err}
	}
	return nil
}
