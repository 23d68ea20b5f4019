package entity

import "time"

// Message is one turn of a captured conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the raw transcript handed to the processing pipeline.
type Conversation struct {
	ID       string            `json:"id"`
	Title    string            `json:"title"`
	Messages []Message         `json:"messages"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Text flattens the transcript into a single role-prefixed string, the
// form the pipeline transforms operate on.
func (c *Conversation) Text() string {
	out := ""
	for _, m := range c.Messages {
		out += m.Role + ": " + m.Content + "\n"
	}
	return out
}

// Topic is a weighted subject extracted from a conversation summary.
type Topic struct {
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
	Mentions   int     `json:"mentions"`
}

// Sentiment is the aggregate tone classification of a conversation.
type Sentiment struct {
	Overall    string             `json:"overall"` // positive, negative, neutral, mixed
	Confidence float64            `json:"confidence"`
	Scores     map[string]float64 `json:"scores"`
}

// Summary is the structured output of the summarization transform.
type Summary struct {
	ConversationID string    `json:"conversation_id"`
	Summary        string    `json:"summary"`
	Tags           []string  `json:"tags"`
	Topics         []Topic   `json:"topics"`
	Sentiment      Sentiment `json:"sentiment"`
	ContentHash    string    `json:"content_hash"`
	PromptHash     string    `json:"prompt_hash"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// EmbeddingRef points at a stored embedding artifact for a summary.
type EmbeddingRef struct {
	EmbeddingID    string    `json:"embedding_id"`
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	Dimension      int       `json:"dimension"`
	Path           string    `json:"path"`
	CreatedAt      time.Time `json:"created_at"`
}
