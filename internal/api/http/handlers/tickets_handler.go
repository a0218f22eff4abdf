package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-service/internal/api/dto"
	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/service"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// TicketsHandler manages the requester-facing ticket endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := requesterActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	category, ok := domain.ParseCategory(req.Category)
	if !ok {
		return apperrors.NewValidationError("unknown category", map[string]any{"category": req.Category})
	}
	if strings.TrimSpace(req.Description) == "" {
		return apperrors.NewValidationError("description required", nil)
	}

	ticket, err := h.tickets.CreateTicket(c.UserContext(), actor, service.TicketCreateInput{
		Category:       category,
		Description:    req.Description,
		TransactionRef: req.TransactionRef,
		UploadTokens:   req.UploadTokens,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketSummary(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := requesterActor(c)
	if err != nil {
		return err
	}
	limit, offset := parsePagination(c)
	tickets, err := h.tickets.ListTickets(c.UserContext(), actor, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketSummary(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := requesterActor(c)
	if err != nil {
		return err
	}
	view, err := h.tickets.GetTicket(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// AddMessage POST /tickets/:id/messages.
func (h *TicketsHandler) AddMessage(c *fiber.Ctx) error {
	actor, err := requesterActor(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	view, err := h.tickets.Reply(c.UserContext(), actor, c.Params("id"), req.Body, req.UploadTokens)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketDetail(view)})
}

// ResolveTicket POST /tickets/:id/resolve.
func (h *TicketsHandler) ResolveTicket(c *fiber.Ctx) error {
	actor, err := requesterActor(c)
	if err != nil {
		return err
	}
	view, err := h.tickets.Resolve(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

// ReopenTicket POST /tickets/:id/reopen.
func (h *TicketsHandler) ReopenTicket(c *fiber.Ctx) error {
	actor, err := requesterActor(c)
	if err != nil {
		return err
	}
	view, err := h.tickets.Reopen(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(view)})
}

func requesterActor(c *fiber.Ctx) (domain.Actor, error) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return domain.Actor{}, apperrors.NewUnauthorized("authentication required")
	}
	return actor, nil
}

const maxPageSize = 100

func parsePagination(c *fiber.Ctx) (limit, offset int) {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketSummary(ticket *domain.Ticket) dto.TicketSummary {
	return dto.TicketSummary{
		ID:             ticket.ID,
		RequesterID:    ticket.RequesterID,
		Category:       ticket.Category,
		Description:    ticket.Description,
		TransactionRef: ticket.TransactionRef,
		Status:         ticket.Status,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

func ticketDetail(view *service.TicketView) dto.TicketDetailResponse {
	ticket := view.Ticket
	msgs := make([]dto.TicketMessageResponse, 0, len(view.Messages))
	for i := range view.Messages {
		msgs = append(msgs, ticketMessageResponse(&view.Messages[i]))
	}
	detail := dto.TicketDetailResponse{
		ID:             ticket.ID,
		RequesterID:    ticket.RequesterID,
		Category:       ticket.Category,
		Description:    ticket.Description,
		TransactionRef: ticket.TransactionRef,
		Status:         ticket.Status,
		Attachments:    attachmentResponses(ticket.Attachments),
		Messages:       msgs,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
	if ticket.ResolvedBy != nil {
		detail.ResolvedBy = &dto.ResolvedByResponse{
			Role: ticket.ResolvedBy.Role,
			ID:   ticket.ResolvedBy.ID,
		}
	}
	return detail
}

func ticketMessageResponse(msg *domain.TicketMessage) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:          msg.ID,
		Seq:         msg.Seq,
		AuthorRole:  msg.AuthorRole,
		AuthorID:    msg.AuthorID,
		Body:        msg.Body,
		Attachments: attachmentResponses(msg.Attachments),
		CreatedAt:   msg.CreatedAt,
	}
}

func attachmentResponses(attachments []domain.AttachmentReference) []dto.AttachmentResponse {
	result := make([]dto.AttachmentResponse, 0, len(attachments))
	for _, att := range attachments {
		result = append(result, dto.AttachmentResponse{
			ID:         att.ID,
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			MimeType:   att.MimeType,
			SizeBytes:  att.SizeBytes,
		})
	}
	return result
}
