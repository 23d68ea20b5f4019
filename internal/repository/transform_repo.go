package repository

import (
	"context"

	"github.com/Dadudekc/DreamVault/internal/entity"
)

// Redactor strips PII from text before anything downstream sees it.
// The second return value counts redactions per category.
type Redactor interface {
	Redact(text string) (string, map[string]int)
	// RedactConversation applies Redact to the title and every message,
	// returning a new conversation and merged counts.
	RedactConversation(conv *entity.Conversation) (*entity.Conversation, map[string]int)
}

// Summarizer turns a redacted conversation into a structured summary.
type Summarizer interface {
	Summarize(ctx context.Context, conv *entity.Conversation) (*entity.Summary, error)
}

// Embedder generates and stores an embedding for a summary, returning
// a reference to the stored artifact.
type Embedder interface {
	Embed(ctx context.Context, summary *entity.Summary) (*entity.EmbeddingRef, error)
	// CleanupOlderThan removes embedding artifacts older than the given
	// number of days, returning how many were removed.
	CleanupOlderThan(ctx context.Context, days int) (int, error)
}

// Indexer maintains the inverted index over summaries.
type Indexer interface {
	Index(ctx context.Context, summary *entity.Summary) error
	// Search returns conversation IDs whose summaries mention the term.
	Search(ctx context.Context, term string) ([]string, error)
}

// TranscriptRepository fetches the full transcript behind a discovered
// conversation reference.
type TranscriptRepository interface {
	FetchConversation(ctx context.Context, record entity.DiscoveryRecord) (*entity.Conversation, error)
}
