package config

const (
	// TopicTaskSubmitted is the NSQ topic carrying embedding task submissions.
	// The payload references a task row; the task store stays authoritative
	// for pipeline state.
	TopicTaskSubmitted = "embedding.task"

	// ChannelWorker is the consumer channel shared by all worker instances,
	// so each submission is handed to one worker at a time with at-least-once
	// redelivery on failure.
	ChannelWorker = "worker"
)
