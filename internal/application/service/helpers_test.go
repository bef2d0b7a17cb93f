package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/invoice-approval/migrations"
	"github.com/garyjia/invoice-approval/pkg/database"
)

// repos is a fresh migrated database with every repository on top of it
type repos struct {
	db            *sql.DB
	invoices      port.InvoiceRepository
	extracted     port.ExtractedDataRepository
	actions       port.ActionRepository
	notifications port.NotificationRepository
	users         port.UserRepository
}

func newRepos(t *testing.T) *repos {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.Open(context.Background(),
		database.Config{Path: filepath.Join(t.TempDir(), "service.db")},
		migrations.FS, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &repos{
		db:            db.DB,
		invoices:      repository.NewInvoiceRepository(db.DB, logger),
		extracted:     repository.NewExtractedDataRepository(db.DB, logger),
		actions:       repository.NewActionRepository(db.DB, logger),
		notifications: repository.NewNotificationRepository(db.DB, logger),
		users:         repository.NewUserRepository(db.DB, logger),
	}
}

func (r *repos) user(t *testing.T, name string, role entity.Role, larkOpenID string) *entity.User {
	t.Helper()
	u := &entity.User{
		ID:        uuid.NewString(),
		Username:  name,
		Email:     name + "@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if larkOpenID != "" {
		u.LarkOpenID = &larkOpenID
	}
	require.NoError(t, r.users.Create(context.Background(), u))
	return u
}

func (r *repos) invoice(t *testing.T, submitter *entity.User, createdAt time.Time) *entity.Invoice {
	t.Helper()
	id := uuid.NewString()
	inv := &entity.Invoice{
		ID:               id,
		SubmittedBy:      submitter.ID,
		Category:         entity.CategoryVendorPayment,
		Status:           entity.StatusPendingReview,
		ExtractionStatus: entity.ExtractionCompleted,
		FileRef:          id + ".pdf",
		OriginalFilename: "invoice.pdf",
		FileSize:         64,
		CreatedAt:        createdAt.UTC(),
		UpdatedAt:        createdAt.UTC(),
	}
	require.NoError(t, r.invoices.Create(context.Background(), inv))
	return inv
}

// extractedData stores extracted fields; empty strings leave a field null
func (r *repos) extractedData(t *testing.T, invoiceID, vendor, number, date, total string) {
	t.Helper()
	now := time.Now().UTC()
	d := &entity.ExtractedData{
		ID:               uuid.NewString(),
		InvoiceID:        invoiceID,
		ConfidenceScores: map[string]float64{},
		LineItems:        []entity.LineItem{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if vendor != "" {
		d.VendorName = &vendor
	}
	if number != "" {
		d.InvoiceNumber = &number
	}
	if date != "" {
		d.InvoiceDate = &date
	}
	if total != "" {
		d.GrandTotal = decimal.NewNullDecimal(decimal.RequireFromString(total))
	}
	require.NoError(t, r.extracted.Save(context.Background(), d))
}

func principalOf(u *entity.User) entity.Principal {
	return entity.Principal{UserID: u.ID, Role: u.Role}
}

func assertKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

// recordingLogger keeps the messages it was given
type recordingLogger struct {
	infos  []string
	errors []string
}

func (l *recordingLogger) Info(msg string, _ ...interface{})  { l.infos = append(l.infos, msg) }
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.errors = append(l.errors, msg) }
