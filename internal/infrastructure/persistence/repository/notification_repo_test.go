package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

func TestNotificationRepository(t *testing.T) {
	db := openTestDB(t)
	alice := seedUser(t, db, "alice", entity.RoleEmployee)
	bob := seedUser(t, db, "bob", entity.RoleAccounts)
	inv := seedInvoice(t, db, alice.ID, time.Now(), func(inv *entity.Invoice) { inv.OriginalFilename = "march.pdf" })

	repo := NewNotificationRepository(db, zap.NewNop())
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).UTC()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &entity.Notification{
			ID:        fmt.Sprintf("n-%d", i),
			UserID:    alice.ID,
			InvoiceID: &inv.ID,
			Message:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, repo.Create(ctx, &entity.Notification{ID: "n-bob", UserID: bob.ID, Message: "hi", CreatedAt: base}))

	t.Run("lists newest first with invoice summary", func(t *testing.T) {
		items, err := repo.ListByUser(ctx, alice.ID, 2, 0)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "n-2", items[0].ID)
		assert.Equal(t, "n-1", items[1].ID)
		require.NotNil(t, items[0].Invoice)
		assert.Equal(t, "march.pdf", items[0].Invoice.OriginalFilename)
		assert.Equal(t, entity.StatusPendingReview, items[0].Invoice.Status)

		items, err = repo.ListByUser(ctx, alice.ID, 2, 2)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "n-0", items[0].ID)
	})

	t.Run("notification without invoice", func(t *testing.T) {
		n, err := repo.GetByID(ctx, "n-bob")
		require.NoError(t, err)
		require.NotNil(t, n)
		assert.Nil(t, n.InvoiceID)
		assert.Nil(t, n.Invoice)
		assert.False(t, n.Read)
	})

	t.Run("read flags", func(t *testing.T) {
		require.NoError(t, repo.MarkRead(ctx, "n-0"))

		unread, err := repo.CountByUser(ctx, alice.ID, true)
		require.NoError(t, err)
		assert.Equal(t, 2, unread)

		updated, err := repo.MarkAllRead(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), updated)

		unread, err = repo.CountByUser(ctx, alice.ID, true)
		require.NoError(t, err)
		assert.Zero(t, unread)

		total, err := repo.CountByUser(ctx, alice.ID, false)
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		bobUnread, err := repo.CountByUser(ctx, bob.ID, true)
		require.NoError(t, err)
		assert.Equal(t, 1, bobUnread)
	})

	missing, err := repo.GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestActionRepository_TrailIsChronological(t *testing.T) {
	db := openTestDB(t)
	alice := seedUser(t, db, "alice", entity.RoleEmployee)
	acc := seedUser(t, db, "acc", entity.RoleAccounts)
	inv := seedInvoice(t, db, alice.ID, time.Now())
	repo := NewActionRepository(db, zap.NewNop())
	ctx := context.Background()
	base := time.Now().Add(-time.Hour).UTC()

	comment := "looks fine"
	require.NoError(t, repo.Create(ctx, &entity.InvoiceAction{ID: "a2", InvoiceID: inv.ID, UserID: acc.ID, Action: entity.ActionApproved, Comment: &comment, CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Create(ctx, &entity.InvoiceAction{ID: "a1", InvoiceID: inv.ID, UserID: alice.ID, Action: entity.ActionSubmitted, CreatedAt: base}))

	trail, err := repo.ListByInvoiceID(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, entity.ActionSubmitted, trail[0].Action)
	assert.Nil(t, trail[0].Comment)
	assert.Equal(t, entity.ActionApproved, trail[1].Action)
	assert.Equal(t, "looks fine", *trail[1].Comment)
	require.NotNil(t, trail[1].User)
	assert.Equal(t, "acc", trail[1].User.Username)
	assert.Equal(t, entity.RoleAccounts, trail[1].User.Role)
}

func TestInvoiceRemoval_KeepsAuditAndNotifications(t *testing.T) {
	db := openTestDB(t)
	alice := seedUser(t, db, "alice", entity.RoleEmployee)
	inv := seedInvoice(t, db, alice.ID, time.Now())
	seedExtracted(t, db, inv.ID, "Acme", "INV-1", "", "10")
	ctx := context.Background()
	now := time.Now().UTC()

	actions := NewActionRepository(db, zap.NewNop())
	notifications := NewNotificationRepository(db, zap.NewNop())
	require.NoError(t, actions.Create(ctx, &entity.InvoiceAction{ID: "a1", InvoiceID: inv.ID, UserID: alice.ID, Action: entity.ActionSubmitted, CreatedAt: now}))
	require.NoError(t, notifications.Create(ctx, &entity.Notification{ID: "n1", UserID: alice.ID, InvoiceID: &inv.ID, Message: "hello", CreatedAt: now}))

	_, err := db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, inv.ID)
	require.NoError(t, err)

	trail, err := actions.ListByInvoiceID(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, entity.ActionSubmitted, trail[0].Action)

	n, err := notifications.GetByID(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Nil(t, n.InvoiceID)
	assert.Nil(t, n.Invoice)
	assert.Equal(t, "hello", n.Message)

	var extracted int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM extracted_data WHERE invoice_id = ?`, inv.ID).Scan(&extracted))
	assert.Zero(t, extracted, "extracted data goes with its invoice")
}

func TestUserRepository(t *testing.T) {
	db := openTestDB(t)
	seedUser(t, db, "acc-1", entity.RoleAccounts)
	seedUser(t, db, "acc-2", entity.RoleAccounts)
	senior := seedUser(t, db, "senior", entity.RoleSeniorAccounts)
	repo := NewUserRepository(db, zap.NewNop())
	ctx := context.Background()

	accounts, err := repo.ListByRole(ctx, entity.RoleAccounts)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	got, err := repo.GetByUsername(ctx, "senior")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, senior.ID, got.ID)
	assert.Equal(t, entity.RoleSeniorAccounts, got.Role)

	got, err = repo.GetByID(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)

	dup := &entity.User{ID: "x", Username: "senior", Email: "s@example.com", Role: entity.RoleAccounts, CreatedAt: time.Now()}
	assert.Error(t, repo.Create(ctx, dup), "usernames are unique")
}
