package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-service/internal/domain"
)

func newTicket(t *testing.T, repo TicketRepository, requesterID string) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		RequesterID: requesterID,
		Category:    domain.CategoryDepositIssue,
		Description: "deposit missing",
		Status:      domain.TicketStatusOpen,
	}
	require.NoError(t, repo.Create(context.Background(), ticket))
	require.NotEmpty(t, ticket.ID)
	return ticket
}

func TestMemoryRepositoryCreateAndGet(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ticket := newTicket(t, repo, "user-1")

	got, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, got.ID)
	assert.Equal(t, domain.TicketStatusOpen, got.Status)
	assert.Equal(t, domain.CategoryDepositIssue, got.Category)

	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepositoryListByRequesterNewestFirst(t *testing.T) {
	repo := NewMemoryTicketRepository()
	first := newTicket(t, repo, "user-1")
	second := newTicket(t, repo, "user-1")
	newTicket(t, repo, "user-2")

	tickets, err := repo.ListByRequester(context.Background(), "user-1", 20, 0)
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	assert.Equal(t, second.ID, tickets[0].ID)
	assert.Equal(t, first.ID, tickets[1].ID)
}

func TestMemoryRepositoryAppendAssignsSequentialPositions(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ticket := newTicket(t, repo, "user-1")

	const n = 5
	for i := 0; i < n; i++ {
		msg := &domain.TicketMessage{
			TicketID:   ticket.ID,
			AuthorRole: domain.RoleRequester,
			AuthorID:   "user-1",
			Body:       fmt.Sprintf("message %d", i),
		}
		require.NoError(t, repo.AppendMessage(context.Background(), msg))
		assert.Equal(t, i, msg.Seq)
	}

	messages, err := repo.ListMessages(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, messages, n)
	for i, msg := range messages {
		assert.Equal(t, i, msg.Seq)
	}
}

func TestMemoryRepositoryConcurrentAppends(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ticket := newTicket(t, repo, "user-1")

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := &domain.TicketMessage{
				TicketID:   ticket.ID,
				AuthorRole: domain.RoleStaff,
				AuthorID:   fmt.Sprintf("staff-%d", i),
				Body:       "concurrent reply",
			}
			assert.NoError(t, repo.AppendMessage(context.Background(), msg))
		}(i)
	}
	wg.Wait()

	messages, err := repo.ListMessages(context.Background(), ticket.ID)
	require.NoError(t, err)
	require.Len(t, messages, writers)

	seen := make(map[int]bool, writers)
	for _, msg := range messages {
		assert.False(t, seen[msg.Seq], "duplicate sequence position %d", msg.Seq)
		seen[msg.Seq] = true
		assert.Less(t, msg.Seq, writers)
	}
}

func TestMemoryRepositoryAppendBumpsUpdatedAt(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ticket := newTicket(t, repo, "user-1")

	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		AuthorRole: domain.RoleRequester,
		AuthorID:   "user-1",
		Body:       "follow-up",
	}
	require.NoError(t, repo.AppendMessage(context.Background(), msg))

	got, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.Before(ticket.UpdatedAt))
}

func TestMemoryRepositoryUpdateStatusOptimisticCheck(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ticket := newTicket(t, repo, "user-1")

	resolved := &domain.ResolvedBy{Role: domain.RoleRequester, ID: "user-1"}
	require.NoError(t, repo.UpdateStatus(context.Background(), ticket.ID,
		domain.TicketStatusOpen, domain.TicketStatusResolved, resolved))

	// second writer read OPEN before the first committed
	err := repo.UpdateStatus(context.Background(), ticket.ID,
		domain.TicketStatusOpen, domain.TicketStatusInProgress, nil)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := repo.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, got.Status)
	require.NotNil(t, got.ResolvedBy)
	assert.Equal(t, "user-1", got.ResolvedBy.ID)

	err = repo.UpdateStatus(context.Background(), "missing",
		domain.TicketStatusOpen, domain.TicketStatusResolved, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepositoryFilter(t *testing.T) {
	repo := NewMemoryTicketRepository()
	deposit := newTicket(t, repo, "user-1")

	withdrawal := &domain.Ticket{
		RequesterID: "user-2",
		Category:    domain.CategoryWithdrawalIssue,
		Description: "withdrawal stuck in pending",
		Status:      domain.TicketStatusOpen,
	}
	require.NoError(t, repo.Create(context.Background(), withdrawal))

	byCategory, err := repo.ListWithFilter(context.Background(), TicketFilter{
		Categories: []domain.TicketCategory{domain.CategoryDepositIssue},
	})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, deposit.ID, byCategory[0].ID)

	search := "stuck"
	bySearch, err := repo.ListWithFilter(context.Background(), TicketFilter{SearchTerm: &search})
	require.NoError(t, err)
	require.Len(t, bySearch, 1)
	assert.Equal(t, withdrawal.ID, bySearch[0].ID)
}

func TestMemoryRepositoryAppendRejectsNonOpenTicket(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ticket := newTicket(t, repo, "user-1")
	resolved := &domain.ResolvedBy{Role: domain.RoleStaff, ID: "staff-1"}
	require.NoError(t, repo.UpdateStatus(context.Background(), ticket.ID, domain.TicketStatusOpen, domain.TicketStatusResolved, resolved))

	msg := &domain.TicketMessage{
		TicketID:   ticket.ID,
		AuthorRole: domain.RoleRequester,
		AuthorID:   "user-1",
		Body:       "too late",
	}
	assert.ErrorIs(t, repo.AppendMessage(context.Background(), msg), ErrNotOpenForReply)

	messages, err := repo.ListMessages(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
