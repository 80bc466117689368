package clip

import (
	"path/filepath"
	"strings"
	"time"
)

// Kind identifies which acquisition path applies to a Source.
type Kind int

const (
	KindRemoteURL Kind = iota + 1
	KindAttachment
)

func (k Kind) String() string {
	switch k {
	case KindRemoteURL:
		return "remote_url"
	case KindAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// Attachment is a file carried by a chat message.
type Attachment struct {
	URL      string
	Filename string
	Size     int64
}

// Extension returns the lowercased filename suffix, including the dot.
func (a Attachment) Extension() string {
	return strings.ToLower(filepath.Ext(a.Filename))
}

// Event is one inbound chat message as seen by the pipeline.
type Event struct {
	ID          string
	ChannelID   string
	GuildID     string
	AuthorID    string
	AuthorName  string
	Content     string
	Attachments []Attachment
	Link        string
	ReceivedAt  time.Time
}

// Source describes where a clip comes from. Exactly one of URL or
// Attachment is set, according to Kind.
type Source struct {
	Kind       Kind
	URL        string
	Attachment *Attachment
}

// ID returns a short identifier suitable for log fields.
func (s Source) ID() string {
	if s.Kind == KindAttachment && s.Attachment != nil {
		return s.Attachment.Filename
	}
	return s.URL
}

// Clip is a locally acquired media file plus the metadata sent upstream.
type Clip struct {
	Path      string
	SourceID  string
	Streamer  string
	Title     string
	Link      string
	Submitter string
}

// Reaction is a user-visible acknowledgment placed on the originating message.
type Reaction string

const (
	ReactionPending Reaction = "🔄"
	ReactionSuccess Reaction = "✅"
	ReactionFailure Reaction = "❌"
)
