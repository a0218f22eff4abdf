package domain

import "time"

// TicketMessage is one entry in a ticket's threaded conversation. Messages are
// append-only: once stored they are never edited, deleted or reordered.
type TicketMessage struct {
	ID          string
	TicketID    string
	Seq         int
	AuthorRole  ActorRole
	AuthorID    string
	Body        string
	Attachments []AttachmentReference
	CreatedAt   time.Time
}

// AttachmentReference stores metadata for an externally stored file. Immutable
// after creation; owned by the message (or opening ticket content) that
// introduced it.
type AttachmentReference struct {
	ID         string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
