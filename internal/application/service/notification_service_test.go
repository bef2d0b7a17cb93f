package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

func TestNotificationService_NotifyRole(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	svc := NewNotificationService(r.notifications, r.users, nil)

	submitter := r.user(t, "erin", entity.RoleEmployee, "")
	a1 := r.user(t, "ann", entity.RoleAccounts, "")
	a2 := r.user(t, "abe", entity.RoleAccounts, "")
	r.user(t, "sid", entity.RoleSeniorAccounts, "")
	inv := r.invoice(t, submitter, time.Now())

	created, err := svc.NotifyRole(ctx, entity.RoleAccounts, inv.ID, "Invoice invoice.pdf requires final approval.")
	require.NoError(t, err)
	require.Len(t, created, 2)

	got := map[string]bool{}
	for _, n := range created {
		got[n.UserID] = true
		require.NotNil(t, n.InvoiceID)
		assert.Equal(t, inv.ID, *n.InvoiceID)
	}
	assert.Equal(t, map[string]bool{a1.ID: true, a2.ID: true}, got)
}

func TestNotificationService_ListAndRead(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	logger := &recordingLogger{}
	svc := NewNotificationService(r.notifications, r.users, logger)

	me := r.user(t, "mia", entity.RoleEmployee, "")
	someoneElse := r.user(t, "max", entity.RoleEmployee, "")
	inv := r.invoice(t, me, time.Now())

	var ids []string
	for i := 0; i < 3; i++ {
		n, err := svc.Notify(ctx, me.ID, inv.ID, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		ids = append(ids, n.ID)
	}
	foreign, err := svc.Notify(ctx, someoneElse.ID, "", "not yours")
	require.NoError(t, err)
	assert.Nil(t, foreign.InvoiceID)

	page, err := svc.List(ctx, me.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "message 2", page.Items[0].Message)
	assert.Equal(t, 3, page.UnreadCount)
	assert.Equal(t, entity.Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, page.Pagination)

	read, err := svc.MarkRead(ctx, ids[0], me.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	_, err = svc.MarkRead(ctx, foreign.ID, me.ID)
	assertKind(t, err, apperr.KindForbidden)
	_, err = svc.MarkRead(ctx, uuid.NewString(), me.ID)
	assertKind(t, err, apperr.KindNotFound)

	updated, err := svc.MarkAllRead(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated)
	assert.Contains(t, logger.infos, "Marked notifications read")

	page, err = svc.List(ctx, me.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, page.UnreadCount)
	assert.Equal(t, entity.DefaultPageLimit, page.Pagination.Limit)
}
