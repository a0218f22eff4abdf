package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/events"
)

// AuditService writes a structured log line for every domain event. It is
// also the seam where an external notification collaborator would subscribe.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	return &AuditService{dispatcher: dispatcher, logger: logger}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventTicketCreated, a.handle)
	a.dispatcher.Subscribe(events.EventTicketStatusChanged, a.handle)
	a.dispatcher.Subscribe(events.EventTicketAssigned, a.handle)
	a.dispatcher.Subscribe(events.EventTicketMessageAdded, a.handle)
}

func (a *AuditService) handle(_ context.Context, event events.Event) error {
	a.logger.Info("ticket event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
		zap.String("actor_role", string(event.Actor.Role)),
		zap.String("actor_id", event.Actor.ID),
		zap.Any("payload", event.Payload),
	)
	return nil
}
