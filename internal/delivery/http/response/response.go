package response

type EnqueueJobResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	Enqueued       bool   `json:"enqueued"`
}

type JobStatusResponse struct {
	ConversationID string `json:"conversation_id"`
	Status         string `json:"status"`
}

type RequeueResponse struct {
	Requeued int64 `json:"requeued"`
}

type SearchResponse struct {
	Term            string   `json:"term"`
	ConversationIDs []string `json:"conversation_ids"`
}
