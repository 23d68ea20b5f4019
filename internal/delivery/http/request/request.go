package request

type EnqueueJobRequest struct {
	ConversationID string            `json:"conversation_id"`
	Priority       int               `json:"priority"`
	MaxRetries     int               `json:"max_retries"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

type CleanupRequest struct {
	Days int `json:"days"`
}
