package task

// TaskSubmittedEvent is the payload published on the submission topic. It
// carries only a reference to the task row plus the content to embed; the
// task store remains the single source of truth for lifecycle state.
type TaskSubmittedEvent struct {
	TaskID   int64  `json:"task_id"`
	FileName string `json:"file_name"`

	// FileContent is the document body, base64-encoded at the API boundary.
	FileContent string `json:"file_content"`

	CorrelationID string `json:"correlation_id,omitempty"`
}
