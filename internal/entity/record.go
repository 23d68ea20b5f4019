package entity

// DiscoveryRecord is one conversation reference extracted from the
// upstream source. Records are deduplicated by SourceURL within a
// single discovery pass.
type DiscoveryRecord struct {
	ID           string `json:"id"`
	DisplayTitle string `json:"title"`
	SourceURL    string `json:"url"`
}

// QueueStats is the operator-facing snapshot of the job queue.
type QueueStats struct {
	Total    int64               `json:"total"`
	Pending  int64               `json:"pending"`
	ByStatus map[JobStatus]int64 `json:"by_status"`
}
