package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/lifecycle"
)

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the Postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const query = `
        INSERT INTO tickets (requester_id, category, description, transaction_ref, status)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	if err := tx.QueryRow(ctx, query,
		ticket.RequesterID,
		ticket.Category,
		ticket.Description,
		ticket.TransactionRef,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	for i := range ticket.Attachments {
		att := &ticket.Attachments[i]
		if err := insertAttachment(ctx, tx, ticket.ID, nil, att); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, requester_id, category, description, transaction_ref, status,
               resolved_by_role, resolved_by_id, created_at, updated_at
        FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	attachments, err := r.listAttachments(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Attachments = attachments[""]
	return ticket, nil
}

func (r *ticketRepository) ListByRequester(ctx context.Context, requesterID string, limit, offset int) ([]domain.Ticket, error) {
	filter := TicketFilter{
		RequesterID: &requesterID,
		Limit:       limit,
		Offset:      offset,
	}
	return r.ListWithFilter(ctx, filter)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT id, requester_id, category, description, transaction_ref, status,
                    resolved_by_role, resolved_by_id, created_at, updated_at
             FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		clauses = append(clauses, fmt.Sprintf("LOWER(description) LIKE $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) ListMessages(ctx context.Context, ticketID string) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, seq, author_role, author_id, body, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var msg domain.TicketMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.TicketID,
			&msg.Seq,
			&msg.AuthorRole,
			&msg.AuthorID,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	attachments, err := r.listAttachments(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	for i := range result {
		result[i].Attachments = attachments[result[i].ID]
	}
	return result, nil
}

func (r *ticketRepository) AppendMessage(ctx context.Context, msg *domain.TicketMessage) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Row lock on the ticket serializes sequence assignment per ticket. The
	// status is re-checked under the same lock so a transition committed
	// after the caller's precondition read still rejects the append.
	var status domain.TicketStatus
	if err := tx.QueryRow(ctx, `SELECT status FROM tickets WHERE id=$1 FOR UPDATE`, msg.TicketID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !lifecycle.CanReply(status) {
		return ErrNotOpenForReply
	}

	const insert = `
        INSERT INTO ticket_messages (ticket_id, seq, author_role, author_id, body)
        SELECT $1, COALESCE(MAX(seq)+1, 0), $2, $3, $4
        FROM ticket_messages WHERE ticket_id=$1
        RETURNING id, seq, created_at`
	if err := tx.QueryRow(ctx, insert,
		msg.TicketID,
		msg.AuthorRole,
		msg.AuthorID,
		msg.Body,
	).Scan(&msg.ID, &msg.Seq, &msg.CreatedAt); err != nil {
		return err
	}

	for i := range msg.Attachments {
		att := &msg.Attachments[i]
		if err := insertAttachment(ctx, tx, msg.TicketID, &msg.ID, att); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE tickets SET updated_at=NOW() WHERE id=$1`, msg.TicketID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticketID string, expected, next domain.TicketStatus, resolvedBy *domain.ResolvedBy) error {
	var role, actorID *string
	if resolvedBy != nil {
		roleVal := string(resolvedBy.Role)
		role = &roleVal
		actorID = &resolvedBy.ID
	}
	const query = `
        UPDATE tickets SET status=$2, resolved_by_role=$3, resolved_by_id=$4, updated_at=NOW()
        WHERE id=$1 AND status=$5`
	cmd, err := r.pool.Exec(ctx, query, ticketID, next, role, actorID, expected)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`, ticketID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}
	return nil
}

// listAttachments returns all attachment references for a ticket keyed by
// message id; opening attachments are keyed by the empty string.
func (r *ticketRepository) listAttachments(ctx context.Context, ticketID string) (map[string][]domain.AttachmentReference, error) {
	const query = `
        SELECT id, COALESCE(message_id::text, ''), storage_key, file_name, mime_type, size_bytes, created_at
        FROM attachment_references WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]domain.AttachmentReference)
	for rows.Next() {
		var att domain.AttachmentReference
		var messageID string
		if err := rows.Scan(
			&att.ID,
			&messageID,
			&att.StorageKey,
			&att.FileName,
			&att.MimeType,
			&att.SizeBytes,
			&att.CreatedAt,
		); err != nil {
			return nil, err
		}
		result[messageID] = append(result[messageID], att)
	}
	return result, rows.Err()
}

func insertAttachment(ctx context.Context, tx pgx.Tx, ticketID string, messageID *string, att *domain.AttachmentReference) error {
	const query = `
        INSERT INTO attachment_references (ticket_id, message_id, storage_key, file_name, mime_type, size_bytes)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return tx.QueryRow(ctx, query,
		ticketID,
		messageID,
		att.StorageKey,
		att.FileName,
		att.MimeType,
		att.SizeBytes,
	).Scan(&att.ID, &att.CreatedAt)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var resolvedRole, resolvedID *string
	if err := row.Scan(
		&ticket.ID,
		&ticket.RequesterID,
		&ticket.Category,
		&ticket.Description,
		&ticket.TransactionRef,
		&ticket.Status,
		&resolvedRole,
		&resolvedID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if resolvedRole != nil && resolvedID != nil {
		ticket.ResolvedBy = &domain.ResolvedBy{Role: domain.ActorRole(*resolvedRole), ID: *resolvedID}
	}
	return &ticket, nil
}
