package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/Dadudekc/DreamVault/internal/entity"
	_ "modernc.org/sqlite"
)

const indexSchema = `
CREATE TABLE IF NOT EXISTS topics_index (
    topic           TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    confidence      REAL NOT NULL,
    mentions        INTEGER NOT NULL DEFAULT 1,
    PRIMARY KEY (topic, conversation_id)
);
CREATE TABLE IF NOT EXISTS tags_index (
    tag             TEXT NOT NULL,
    conversation_id TEXT NOT NULL,
    PRIMARY KEY (tag, conversation_id)
);
`

// IndexRepoImpl maintains the inverted index over summaries: which
// conversations mention which topics and tags.
type IndexRepoImpl struct {
	db *sql.DB
}

// NewIndexRepo opens (creating if needed) the index database.
func NewIndexRepo(dbPath string) (*IndexRepoImpl, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(indexSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &IndexRepoImpl{db: db}, nil
}

// Close closes the database handle.
func (r *IndexRepoImpl) Close() error {
	return r.db.Close()
}

// Index upserts a summary's topics and tags. Re-indexing the same
// conversation replaces its previous terms' weights.
func (r *IndexRepoImpl) Index(ctx context.Context, summary *entity.Summary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, topic := range summary.Topics {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO topics_index (topic, conversation_id, confidence, mentions)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT(topic, conversation_id) DO UPDATE SET
			 confidence = excluded.confidence, mentions = excluded.mentions`,
			strings.ToLower(topic.Topic), summary.ConversationID, topic.Confidence, topic.Mentions,
		)
		if err != nil {
			return err
		}
	}
	for _, tag := range summary.Tags {
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tags_index (tag, conversation_id) VALUES (?, ?)`,
			strings.ToLower(tag), summary.ConversationID,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Search returns conversation IDs mentioning the term as a topic or
// tag, best topic confidence first.
func (r *IndexRepoImpl) Search(ctx context.Context, term string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT conversation_id FROM (
		     SELECT conversation_id, confidence FROM topics_index WHERE topic = ?
		     UNION
		     SELECT conversation_id, 0 AS confidence FROM tags_index WHERE tag = ?
		 )
		 GROUP BY conversation_id
		 ORDER BY MAX(confidence) DESC, conversation_id ASC`,
		strings.ToLower(term), strings.ToLower(term),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
