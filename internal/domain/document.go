package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Document is a file in the knowledge base.
type Document struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ETag       string    `json:"etag,omitempty"`
	ModifiedAt time.Time `json:"modified"`
}

// IndexedDocument records the version of a document present in the index.
type IndexedDocument struct {
	Source     string
	ETag       string
	ChunkCount int
	IndexedAt  time.Time
}

// DocumentChunk is one indexed piece of a document.
type DocumentChunk struct {
	Source    string
	Index     int
	Content   string
	Embedding []float32
}

// ValidateDocumentName rejects names that are empty, hidden, or that would
// escape the documents directory.
func ValidateDocumentName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrInvalidDocumentName
	}
	if strings.HasPrefix(name, ".") {
		return NewDomainErrorWithCause(ErrCodeValidation, "invalid document name", fmt.Errorf("hidden files are not allowed: %s", name))
	}
	if strings.ContainsAny(name, `/\`) || path.Base(name) != name {
		return NewDomainErrorWithCause(ErrCodeValidation, "invalid document name", fmt.Errorf("path separators are not allowed: %s", name))
	}
	return nil
}
