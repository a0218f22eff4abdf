package dto

import (
	"time"

	"github.com/spec-kit/support-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	TransactionRef *string  `json:"transaction_ref,omitempty"`
	UploadTokens   []string `json:"upload_tokens"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body         string   `json:"body"`
	UploadTokens []string `json:"upload_tokens"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             string                `json:"id"`
	RequesterID    string                `json:"requester_id"`
	Category       domain.TicketCategory `json:"category"`
	Description    string                `json:"description"`
	TransactionRef *string               `json:"transaction_ref,omitempty"`
	Status         domain.TicketStatus   `json:"status"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides the full ticket including its thread.
type TicketDetailResponse struct {
	ID             string                  `json:"id"`
	RequesterID    string                  `json:"requester_id"`
	Category       domain.TicketCategory   `json:"category"`
	Description    string                  `json:"description"`
	TransactionRef *string                 `json:"transaction_ref,omitempty"`
	Status         domain.TicketStatus     `json:"status"`
	ResolvedBy     *ResolvedByResponse     `json:"resolved_by,omitempty"`
	Attachments    []AttachmentResponse    `json:"attachments"`
	Messages       []TicketMessageResponse `json:"messages"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// ResolvedByResponse identifies the actor who resolved the ticket.
type ResolvedByResponse struct {
	Role domain.ActorRole `json:"role"`
	ID   string           `json:"id"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID          string               `json:"id"`
	Seq         int                  `json:"seq"`
	AuthorRole  domain.ActorRole     `json:"author_role"`
	AuthorID    string               `json:"author_id"`
	Body        string               `json:"body"`
	Attachments []AttachmentResponse `json:"attachments"`
	CreatedAt   time.Time            `json:"created_at"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string `json:"id"`
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
}

// TicketHistoryResponse is one audit trail entry.
type TicketHistoryResponse struct {
	ID            string                  `json:"id"`
	ChangeType    domain.TicketChangeType `json:"change_type"`
	ChangedByRole domain.ActorRole        `json:"changed_by_role"`
	ChangedByID   string                  `json:"changed_by_id"`
	OldStatus     domain.TicketStatus     `json:"old_status"`
	NewStatus     domain.TicketStatus     `json:"new_status"`
	CreatedAt     time.Time               `json:"created_at"`
}
