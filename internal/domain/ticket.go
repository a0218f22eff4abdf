package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// ValidStatus reports whether s is one of the defined lifecycle states.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketCategory is the closed set of issue categories.
type TicketCategory string

const (
	CategoryDepositIssue    TicketCategory = "DEPOSIT_ISSUE"
	CategoryWithdrawalIssue TicketCategory = "WITHDRAWAL_ISSUE"
	CategoryKYCVerification TicketCategory = "KYC_VERIFICATION"
	CategoryAccountAccess   TicketCategory = "ACCOUNT_ACCESS"
	CategoryPlatformBug     TicketCategory = "PLATFORM_BUG"
	CategoryGeneralInquiry  TicketCategory = "GENERAL_INQUIRY"
)

// ParseCategory validates a category label. Unknown labels are rejected at the
// boundary instead of falling back to GENERAL_INQUIRY.
func ParseCategory(raw string) (TicketCategory, bool) {
	category := TicketCategory(raw)
	switch category {
	case CategoryDepositIssue, CategoryWithdrawalIssue, CategoryKYCVerification,
		CategoryAccountAccess, CategoryPlatformBug, CategoryGeneralInquiry:
		return category, true
	}
	return "", false
}

// ResolvedBy records which actor marked a ticket resolved.
type ResolvedBy struct {
	Role ActorRole
	ID   string
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID             string
	RequesterID    string
	Category       TicketCategory
	Description    string
	TransactionRef *string
	Status         TicketStatus
	ResolvedBy     *ResolvedBy
	Attachments    []AttachmentReference
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
