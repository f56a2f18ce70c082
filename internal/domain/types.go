// Package domain defines the core data model shared across the RAG
// pipeline: repositories, document chunks, queries, and ranked results.
// It also owns the error taxonomy (see errors.go) so that every layer
// can classify failures with errors.Is without importing its neighbors.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a registered repository.
// Transitions are driven by the ingestion pipeline:
// pending -> processing -> ready | error.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusError      Status = "error"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusReady, StatusError:
		return true
	}
	return false
}

// Repository is a registered source repository whose documents are
// chunked and embedded for retrieval.
type Repository struct {
	ID           uuid.UUID
	Name         string
	Owner        string
	URL          string
	Private      bool
	Status       Status
	ErrorMessage string // Set when Status == StatusError
	CreatedAt    time.Time
}

// ContentClass categorizes a chunk's source file so query-time
// permission flags can scope what may be retrieved.
type ContentClass string

const (
	ClassCode   ContentClass = "code"
	ClassDocs   ContentClass = "docs"
	ClassIssues ContentClass = "issues"
)

// Chunk is one bounded-size slice of a source document, stored with
// its embedding. Identity within a repository is (FileName, ordinal);
// the ordinal is baked into FileName as a "-chunk-N" suffix at insert
// time, so FileName is unique per repository.
type Chunk struct {
	RepositoryID uuid.UUID
	FileName     string
	Class        ContentClass
	Content      string
	Embedding    []float32
}

// Permissions scope which content classes a query may retrieve.
type Permissions struct {
	AllowCode   bool `json:"allowCode"`
	AllowDocs   bool `json:"allowDocs"`
	AllowIssues bool `json:"allowIssues"`
}

// Classes returns the content classes enabled by the permission flags.
func (p Permissions) Classes() []ContentClass {
	classes := make([]ContentClass, 0, 3)
	if p.AllowCode {
		classes = append(classes, ClassCode)
	}
	if p.AllowDocs {
		classes = append(classes, ClassDocs)
	}
	if p.AllowIssues {
		classes = append(classes, ClassIssues)
	}
	return classes
}

// Query is a free-text question scoped to one repository.
type Query struct {
	Message      string
	RepositoryID uuid.UUID
	Permissions  Permissions
}

// MaxQueryLength bounds the accepted query message (in runes).
const MaxQueryLength = 1000

// RankedResult is a chunk's content with its most recent relevance
// score: cosine similarity after retrieval, then the reranking model's
// relevance score once reranked. Sequences of RankedResult are always
// ordered descending by Score.
type RankedResult struct {
	Content string  `json:"content"`
	Score   float64 `json:"relevanceScore"`
}
