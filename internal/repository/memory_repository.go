package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/lifecycle"
)

// memoryTicketRepository keeps tickets in process memory. It backs tests and
// serves as the storage fallback when no Postgres DSN is configured. A single
// mutex serializes sequence assignment and status writes, giving the same
// per-ticket guarantees as the Postgres implementation.
type memoryTicketRepository struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
	threads map[string][]domain.TicketMessage
}

// NewMemoryTicketRepository builds an empty in-memory repository.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{
		tickets: make(map[string]*domain.Ticket),
		threads: make(map[string][]domain.TicketMessage),
	}
}

func (r *memoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	for i := range ticket.Attachments {
		ticket.Attachments[i].ID = uuid.NewString()
		ticket.Attachments[i].CreatedAt = now
	}

	stored := cloneTicket(ticket)
	r.tickets[ticket.ID] = &stored
	return nil
}

func (r *memoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket := cloneTicket(stored)
	return &ticket, nil
}

func (r *memoryTicketRepository) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]domain.Ticket, error) {
	return r.ListWithFilter(ctx, TicketFilter{
		RequesterID: &requesterID,
		Limit:       limit,
		Offset:      offset,
	})
}

func (r *memoryTicketRepository) ListWithFilter(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []domain.Ticket
	for _, stored := range r.tickets {
		if matchesFilter(stored, filter) {
			matched = append(matched, cloneTicket(stored))
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return nil, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *memoryTicketRepository) ListMessages(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tickets[ticketID]; !ok {
		return nil, ErrNotFound
	}
	thread := r.threads[ticketID]
	result := make([]domain.TicketMessage, len(thread))
	for i := range thread {
		result[i] = cloneMessage(&thread[i])
	}
	return result, nil
}

func (r *memoryTicketRepository) AppendMessage(_ context.Context, msg *domain.TicketMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[msg.TicketID]
	if !ok {
		return ErrNotFound
	}
	if !lifecycle.CanReply(ticket.Status) {
		return ErrNotOpenForReply
	}

	now := time.Now()
	msg.ID = uuid.NewString()
	msg.Seq = len(r.threads[msg.TicketID])
	msg.CreatedAt = now
	for i := range msg.Attachments {
		msg.Attachments[i].ID = uuid.NewString()
		msg.Attachments[i].CreatedAt = now
	}

	r.threads[msg.TicketID] = append(r.threads[msg.TicketID], cloneMessage(msg))
	ticket.UpdatedAt = now
	return nil
}

func (r *memoryTicketRepository) UpdateStatus(_ context.Context, ticketID string, expected, next domain.TicketStatus, resolvedBy *domain.ResolvedBy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ticket, ok := r.tickets[ticketID]
	if !ok {
		return ErrNotFound
	}
	if ticket.Status != expected {
		return ErrConcurrentModification
	}
	ticket.Status = next
	if resolvedBy != nil {
		copied := *resolvedBy
		ticket.ResolvedBy = &copied
	} else {
		ticket.ResolvedBy = nil
	}
	ticket.UpdatedAt = time.Now()
	return nil
}

func matchesFilter(ticket *domain.Ticket, filter TicketFilter) bool {
	if filter.RequesterID != nil && ticket.RequesterID != *filter.RequesterID {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
		return false
	}
	if len(filter.Categories) > 0 && !containsCategory(filter.Categories, ticket.Category) {
		return false
	}
	if filter.CreatedFrom != nil && ticket.CreatedAt.Before(*filter.CreatedFrom) {
		return false
	}
	if filter.CreatedTo != nil && ticket.CreatedAt.After(*filter.CreatedTo) {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term != "" && !strings.Contains(strings.ToLower(ticket.Description), term) {
			return false
		}
	}
	return true
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, candidate := range statuses {
		if candidate == status {
			return true
		}
	}
	return false
}

func containsCategory(categories []domain.TicketCategory, category domain.TicketCategory) bool {
	for _, candidate := range categories {
		if candidate == category {
			return true
		}
	}
	return false
}

func cloneTicket(ticket *domain.Ticket) domain.Ticket {
	copied := *ticket
	if ticket.TransactionRef != nil {
		ref := *ticket.TransactionRef
		copied.TransactionRef = &ref
	}
	if ticket.ResolvedBy != nil {
		resolved := *ticket.ResolvedBy
		copied.ResolvedBy = &resolved
	}
	copied.Attachments = append([]domain.AttachmentReference(nil), ticket.Attachments...)
	return copied
}

func cloneMessage(msg *domain.TicketMessage) domain.TicketMessage {
	copied := *msg
	copied.Attachments = append([]domain.AttachmentReference(nil), msg.Attachments...)
	return copied
}

// memoryHistoryRepository is the in-memory companion to the ticket store.
type memoryHistoryRepository struct {
	mu      sync.Mutex
	entries map[string][]domain.TicketHistory
}

// NewMemoryHistoryRepository builds an empty in-memory history store.
func NewMemoryHistoryRepository() TicketHistoryRepository {
	return &memoryHistoryRepository{entries: make(map[string][]domain.TicketHistory)}
}

func (r *memoryHistoryRepository) Create(_ context.Context, entry *domain.TicketHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now()
	r.entries[entry.TicketID] = append(r.entries[entry.TicketID], *entry)
	return nil
}

func (r *memoryHistoryRepository) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]domain.TicketHistory(nil), r.entries[ticketID]...), nil
}
