package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/repository"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

type stubResolver struct {
	refs []domain.AttachmentReference
	err  error
}

func (s *stubResolver) Resolve(_ context.Context, _ []string) ([]domain.AttachmentReference, error) {
	return s.refs, s.err
}

// conflictRepo simulates a lost optimistic-check race on every status write.
type conflictRepo struct {
	repository.TicketRepository
}

func (r *conflictRepo) UpdateStatus(context.Context, string, domain.TicketStatus, domain.TicketStatus, *domain.ResolvedBy) error {
	return repository.ErrConcurrentModification
}

func newTestService(repo repository.TicketRepository, resolver AttachmentResolver) *TicketService {
	return NewTicketService(TicketDependencies{
		TicketRepo:  repo,
		HistoryRepo: repository.NewMemoryHistoryRepository(),
		Thread:      NewThreadService(repo, nil),
		Attachments: resolver,
	})
}

func TestCreateTicket(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	svc := newTestService(repo, nil)

	ticket, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryDepositIssue,
		Description: "  deposit not credited  ",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, "deposit not credited", ticket.Description)
	assert.Equal(t, requester.ID, ticket.RequesterID)

	_, err = svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryGeneralInquiry,
		Description: "   ",
	})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))
}

func TestCreateTicketResolvesUploadTokens(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	resolver := &stubResolver{refs: []domain.AttachmentReference{
		{StorageKey: "s3/abc", FileName: "receipt.png"},
	}}
	svc := newTestService(repo, resolver)

	ticket, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:     domain.CategoryDepositIssue,
		Description:  "receipt attached",
		UploadTokens: []string{"tok-1"},
	})
	require.NoError(t, err)
	require.Len(t, ticket.Attachments, 1)
	assert.Equal(t, "receipt.png", ticket.Attachments[0].FileName)

	resolver.refs = nil
	resolver.err = apperrors.NewValidationError("unknown upload token", nil)
	_, err = svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:     domain.CategoryDepositIssue,
		Description:  "bad token",
		UploadTokens: []string{"tok-2"},
	})
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, err))
}

func TestResolveReopenRoundTrip(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	svc := newTestService(repo, nil)

	ticket, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryDepositIssue,
		Description: "deposit missing",
	})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), requester, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Ticket.Status)
	require.NotNil(t, resolved.Ticket.ResolvedBy)
	assert.Equal(t, domain.RoleRequester, resolved.Ticket.ResolvedBy.Role)
	assert.Equal(t, requester.ID, resolved.Ticket.ResolvedBy.ID)

	reopened, err := svc.Reopen(context.Background(), requester, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Ticket.Status)
	assert.Nil(t, reopened.Ticket.ResolvedBy)
	assert.Empty(t, reopened.Messages)
}

func TestTicketScenario(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	svc := newTestService(repo, nil)

	ticket, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryDepositIssue,
		Description: "deposit missing",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)

	view, err := svc.Reply(context.Background(), requester, ticket.ID, "Where is my deposit?", nil)
	require.NoError(t, err)
	require.Len(t, view.Messages, 1)

	resolved, err := svc.Resolve(context.Background(), requester, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, resolved.Ticket.Status)

	_, err = svc.Reply(context.Background(), requester, ticket.ID, "one more thing", nil)
	assert.Equal(t, "TICKET_NOT_OPEN_FOR_REPLY", errorCode(t, err))

	messages, err := repo.ListMessages(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestInvalidTransitions(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	svc := newTestService(repo, nil)

	ticket, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryAccountAccess,
		Description: "locked out",
	})
	require.NoError(t, err)

	// reopen is only legal from RESOLVED
	_, err = svc.Reopen(context.Background(), requester, ticket.ID)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))

	_, err = svc.Assign(context.Background(), agent, ticket.ID)
	require.NoError(t, err)

	_, err = svc.Reopen(context.Background(), agent, ticket.ID)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))

	// assigning twice is rejected
	_, err = svc.Assign(context.Background(), agent, ticket.ID)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, err))

	got, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, got.Status)
}

func TestAssignRequiresStaff(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	svc := newTestService(repo, nil)

	ticket, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryPlatformBug,
		Description: "chart rendering broken",
	})
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), requester, ticket.ID)
	assert.Equal(t, "FORBIDDEN", errorCode(t, err))
}

func TestTicketVisibility(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	svc := newTestService(repo, nil)

	ticket, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryKYCVerification,
		Description: "documents pending",
	})
	require.NoError(t, err)

	stranger := domain.Actor{ID: "user-2", Role: domain.RoleRequester}
	_, err = svc.GetTicket(context.Background(), stranger, ticket.ID)
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))

	_, err = svc.Reply(context.Background(), stranger, ticket.ID, "let me in", nil)
	assert.Equal(t, "NOT_FOUND", errorCode(t, err))

	view, err := svc.GetTicket(context.Background(), agent, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, view.Ticket.ID)
}

func TestResolveConcurrentModification(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	base := newTestService(repo, nil)

	ticket, err := base.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryWithdrawalIssue,
		Description: "withdrawal stuck",
	})
	require.NoError(t, err)

	conflicted := newTestService(&conflictRepo{TicketRepository: repo}, nil)
	_, err = conflicted.Resolve(context.Background(), requester, ticket.ID)
	assert.Equal(t, "CONCURRENT_MODIFICATION", errorCode(t, err))
}

func TestHistoryRecordsTransitions(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	svc := newTestService(repo, nil)

	ticket, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryDepositIssue,
		Description: "deposit missing",
	})
	require.NoError(t, err)

	_, err = svc.Assign(context.Background(), agent, ticket.ID)
	require.NoError(t, err)
	_, err = svc.Resolve(context.Background(), agent, ticket.ID)
	require.NoError(t, err)

	entries, err := svc.History(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.ChangeTypeAssigned, entries[0].ChangeType)
	assert.Equal(t, domain.TicketStatusInProgress, entries[0].NewStatus)
	assert.Equal(t, domain.ChangeTypeStatus, entries[1].ChangeType)
	assert.Equal(t, domain.TicketStatusResolved, entries[1].NewStatus)
	assert.Equal(t, agent.ID, entries[1].ChangedBy.ID)
}

func TestListTicketsNewestFirst(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	svc := newTestService(repo, nil)

	first, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryDepositIssue,
		Description: "first",
	})
	require.NoError(t, err)
	second, err := svc.CreateTicket(context.Background(), requester, TicketCreateInput{
		Category:    domain.CategoryGeneralInquiry,
		Description: "second",
	})
	require.NoError(t, err)

	tickets, err := svc.ListTickets(context.Background(), requester, 20, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, second.ID, tickets[0].ID)
	assert.Equal(t, first.ID, tickets[1].ID)
}
