package ingestion

import "time"

const (
	eventTypeIngested = "clip.ingested"
	eventTypeFailed   = "clip.failed"
)

// ClipEvent is published once per processed clip, whatever the outcome.
type ClipEvent struct {
	ID         string    `json:"id"`
	MessageID  string    `json:"message_id"`
	ChannelID  string    `json:"channel_id"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
	SourceKind string    `json:"source_kind"`
	Source     string    `json:"source"`
	Streamer   string    `json:"streamer,omitempty"`
	Title      string    `json:"title,omitempty"`
	Link       string    `json:"link,omitempty"`
	Submitter  string    `json:"submitter"`
	ArchiveKey string    `json:"archive_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
