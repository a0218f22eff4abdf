package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/lifecycle"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// TicketView is a ticket together with its full thread, returned from every
// mutation so a caller can render the updated conversation without a second
// round trip.
type TicketView struct {
	Ticket   *domain.Ticket
	Messages []domain.TicketMessage
}

// ThreadService appends messages to ticket threads. Appends never change
// ticket status; status changes go through TicketService explicitly.
type ThreadService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
}

// NewThreadService constructs the service.
func NewThreadService(tickets repository.TicketRepository, dispatcher events.Dispatcher) *ThreadService {
	return &ThreadService{tickets: tickets, dispatcher: dispatcher}
}

// AppendMessage validates preconditions and appends a message at the next
// sequence position. The ticket must exist and be open for replies, and the
// trimmed body must be non-empty. Returns the appended message and the
// refreshed ticket view.
func (s *ThreadService) AppendMessage(ctx context.Context, ticketID string, author domain.Actor, body string, attachments []domain.AttachmentReference) (*domain.TicketMessage, *TicketView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, nil, mapRepositoryError(err, ticketID)
	}
	if !lifecycle.CanReply(ticket.Status) {
		return nil, nil, apperrors.NewTicketNotOpenForReply(string(ticket.Status))
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, nil, apperrors.NewEmptyMessage()
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		AuthorRole:  author.Role,
		AuthorID:    author.ID,
		Body:        body,
		Attachments: attachments,
	}
	if err := s.tickets.AppendMessage(ctx, msg); err != nil {
		// A transition can commit between the precondition read above and
		// the append; the repository re-checks under its own lock and
		// reports the late rejection here.
		if errors.Is(err, repository.ErrNotOpenForReply) {
			status := ""
			if current, getErr := s.tickets.GetByID(ctx, ticketID); getErr == nil {
				status = string(current.Status)
			}
			return nil, nil, apperrors.NewTicketNotOpenForReply(status)
		}
		return nil, nil, mapRepositoryError(err, ticketID)
	}

	view, err := s.View(ctx, ticketID)
	if err != nil {
		return nil, nil, err
	}

	publish(ctx, s.dispatcher, events.Event{
		Type:     events.EventTicketMessageAdded,
		TicketID: ticket.ID,
		Actor:    author,
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			Seq:         msg.Seq,
			AuthorRole:  msg.AuthorRole,
			AuthorID:    msg.AuthorID,
			BodyPreview: stringPreview(msg.Body, 120),
		},
	})
	return msg, view, nil
}

// View fetches a ticket with its full thread.
func (s *ThreadService) View(ctx context.Context, ticketID string) (*TicketView, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepositoryError(err, ticketID)
	}
	messages, err := s.tickets.ListMessages(ctx, ticketID)
	if err != nil {
		return nil, mapRepositoryError(err, ticketID)
	}
	return &TicketView{Ticket: ticket, Messages: messages}, nil
}

func mapRepositoryError(err error, ticketID string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, repository.ErrConcurrentModification):
		return apperrors.NewConcurrentModification(map[string]any{"ticket_id": ticketID})
	default:
		return apperrors.MapError(err)
	}
}

func publish(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = dispatcher.Publish(ctx, event)
}

// stringPreview trims body to at most max runes, never splitting a multi-byte
// character.
func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if max <= 0 {
		return ""
	}
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
