package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

func TestAuditService_RecordAndRead(t *testing.T) {
	r := newRepos(t)
	ctx := context.Background()
	svc := NewAuditService(r.invoices, r.actions, nil)

	owner := r.user(t, "olga", entity.RoleEmployee, "")
	other := r.user(t, "otto", entity.RoleEmployee, "")
	clerk := r.user(t, "clara", entity.RoleAccounts, "")
	inv := r.invoice(t, owner, time.Now())

	submitted, err := svc.Record(ctx, inv.ID, owner.ID, entity.ActionSubmitted, "")
	require.NoError(t, err)
	assert.Nil(t, submitted.Comment)
	_, err = svc.Record(ctx, inv.ID, clerk.ID, entity.ActionRejected, "duplicate receipt")
	require.NoError(t, err)

	for _, p := range []entity.Principal{principalOf(owner), principalOf(clerk)} {
		actions, err := svc.GetAuditLog(ctx, inv.ID, p)
		require.NoError(t, err)
		require.Len(t, actions, 2)
		assert.Equal(t, entity.ActionSubmitted, actions[0].Action)
		assert.Equal(t, entity.ActionRejected, actions[1].Action)
		require.NotNil(t, actions[1].Comment)
		assert.Equal(t, "duplicate receipt", *actions[1].Comment)
	}

	_, err = svc.GetAuditLog(ctx, inv.ID, principalOf(other))
	assertKind(t, err, apperr.KindForbidden)

	_, err = svc.GetAuditLog(ctx, uuid.NewString(), principalOf(clerk))
	assertKind(t, err, apperr.KindNotFound)
}
