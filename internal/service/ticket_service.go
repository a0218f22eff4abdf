package service

import (
	"context"
	"strings"
	"time"

	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/lifecycle"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// AttachmentResolver exchanges opaque upload tokens for attachment references.
type AttachmentResolver interface {
	Resolve(ctx context.Context, tokens []string) ([]domain.AttachmentReference, error)
}

// TicketService is the facade core: it authorizes callers, drives lifecycle
// transitions and delegates thread mutations to ThreadService.
type TicketService struct {
	tickets     repository.TicketRepository
	history     repository.TicketHistoryRepository
	thread      *ThreadService
	attachments AttachmentResolver
	dispatcher  events.Dispatcher
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	Thread      *ThreadService
	Attachments AttachmentResolver
	Dispatcher  events.Dispatcher
}

// TicketCreateInput describes the ticket intake payload.
type TicketCreateInput struct {
	Category       domain.TicketCategory
	Description    string
	TransactionRef *string
	UploadTokens   []string
}

// TicketStaffFilter describes staff listing filters.
type TicketStaffFilter struct {
	RequesterID *string
	Statuses    []domain.TicketStatus
	Categories  []domain.TicketCategory
	SearchTerm  *string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		history:     deps.HistoryRepo,
		thread:      deps.Thread,
		attachments: deps.Attachments,
		dispatcher:  deps.Dispatcher,
	}
}

// CreateTicket opens a new ticket for the requester. The opening description
// and attachments belong to the ticket itself; thread sequence positions are
// reserved for replies.
func (s *TicketService) CreateTicket(ctx context.Context, requester domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description required", nil)
	}

	attachments, err := s.resolveTokens(ctx, input.UploadTokens)
	if err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		RequesterID:    requester.ID,
		Category:       input.Category,
		Description:    description,
		TransactionRef: input.TransactionRef,
		Status:         domain.TicketStatusOpen,
		Attachments:    attachments,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}

	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    requester,
		Payload: events.TicketCreatedPayload{
			Category:       ticket.Category,
			TransactionRef: ticket.TransactionRef,
			Attachments:    len(ticket.Attachments),
		},
	})
	return ticket, nil
}

// ListTickets returns the requester's tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, requester domain.Actor, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByRequester(ctx, requester.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListStaffTickets returns tickets matching the staff filter.
func (s *TicketService) ListStaffTickets(ctx context.Context, filter TicketStaffFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		RequesterID: filter.RequesterID,
		Statuses:    filter.Statuses,
		Categories:  filter.Categories,
		SearchTerm:  filter.SearchTerm,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// GetTicket fetches a ticket with its full thread, enforcing visibility.
func (s *TicketService) GetTicket(ctx context.Context, caller domain.Actor, ticketID string) (*TicketView, error) {
	view, err := s.thread.View(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, view.Ticket); err != nil {
		return nil, err
	}
	return view, nil
}

// Reply appends a message to the ticket on behalf of the caller and returns
// the updated view.
func (s *TicketService) Reply(ctx context.Context, caller domain.Actor, ticketID, body string, uploadTokens []string) (*TicketView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepositoryError(err, ticketID)
	}
	if err := authorize(caller, ticket); err != nil {
		return nil, err
	}

	attachments, err := s.resolveTokens(ctx, uploadTokens)
	if err != nil {
		return nil, err
	}

	_, view, err := s.thread.AppendMessage(ctx, ticketID, caller, body, attachments)
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Assign moves an open ticket to IN_PROGRESS when staff takes ownership.
func (s *TicketService) Assign(ctx context.Context, staff domain.Actor, ticketID string) (*TicketView, error) {
	if !staff.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	return s.transition(ctx, staff, ticketID, lifecycle.TransitionAssign, domain.ChangeTypeAssigned)
}

// Resolve marks a ticket resolved and records the resolving actor. Either
// party may resolve: the requester on their own ticket, or any staff member.
func (s *TicketService) Resolve(ctx context.Context, caller domain.Actor, ticketID string) (*TicketView, error) {
	return s.transition(ctx, caller, ticketID, lifecycle.TransitionResolve, domain.ChangeTypeStatus)
}

// Reopen moves a resolved ticket back to OPEN and clears the resolving actor.
func (s *TicketService) Reopen(ctx context.Context, caller domain.Actor, ticketID string) (*TicketView, error) {
	return s.transition(ctx, caller, ticketID, lifecycle.TransitionReopen, domain.ChangeTypeStatus)
}

// History returns the audit trail for a ticket (staff detail view).
func (s *TicketService) History(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if s.history == nil {
		return []domain.TicketHistory{}, nil
	}
	entries, err := s.history.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// transition reads the persisted status, computes the next state and writes
// it under an optimistic check. A lost race surfaces as
// CONCURRENT_MODIFICATION; the core never retries.
func (s *TicketService) transition(ctx context.Context, caller domain.Actor, ticketID string, t lifecycle.Transition, changeType domain.TicketChangeType) (*TicketView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepositoryError(err, ticketID)
	}
	if err := authorize(caller, ticket); err != nil {
		return nil, err
	}

	next, err := lifecycle.Next(ticket.Status, t)
	if err != nil {
		return nil, apperrors.NewInvalidTransition(string(ticket.Status), map[string]any{
			"ticket_id": ticketID,
			"requested": string(t),
		})
	}

	var resolvedBy *domain.ResolvedBy
	if next == domain.TicketStatusResolved {
		resolvedBy = &domain.ResolvedBy{Role: caller.Role, ID: caller.ID}
	}
	if err := s.tickets.UpdateStatus(ctx, ticketID, ticket.Status, next, resolvedBy); err != nil {
		return nil, mapRepositoryError(err, ticketID)
	}

	s.recordStatusChange(ctx, caller, ticketID, changeType, ticket.Status, next)

	event := events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticketID,
		Actor:    caller,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: ticket.Status,
			NewStatus: next,
		},
	}
	if t == lifecycle.TransitionAssign {
		event.Type = events.EventTicketAssigned
		event.Payload = events.TicketAssignedPayload{AssigneeStaffID: caller.ID}
	}
	publish(ctx, s.dispatcher, event)

	return s.thread.View(ctx, ticketID)
}

func (s *TicketService) resolveTokens(ctx context.Context, tokens []string) ([]domain.AttachmentReference, error) {
	if len(tokens) == 0 || s.attachments == nil {
		return nil, nil
	}
	return s.attachments.Resolve(ctx, tokens)
}

func (s *TicketService) recordStatusChange(ctx context.Context, actor domain.Actor, ticketID string, changeType domain.TicketChangeType, oldStatus, newStatus domain.TicketStatus) {
	if s.history == nil {
		return
	}
	entry := &domain.TicketHistory{
		TicketID:   ticketID,
		ChangedBy:  actor,
		ChangeType: changeType,
		OldStatus:  oldStatus,
		NewStatus:  newStatus,
	}
	_ = s.history.Create(ctx, entry)
}

// authorize enforces ticket visibility: staff see everything, requesters see
// only their own tickets. Foreign tickets read as NOT_FOUND so their
// existence is not leaked.
func authorize(caller domain.Actor, ticket *domain.Ticket) error {
	if caller.IsStaff() {
		return nil
	}
	if ticket.RequesterID == caller.ID {
		return nil
	}
	return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticket.ID})
}
