package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
	"github.com/garyjia/invoice-approval/migrations"
	"github.com/garyjia/invoice-approval/pkg/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(context.Background(),
		database.Config{Path: filepath.Join(t.TempDir(), "test.db")},
		migrations.FS, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

func seedUser(t *testing.T, db *sql.DB, username string, role entity.Role) *entity.User {
	t.Helper()
	u := &entity.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     username + "@example.com",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, NewUserRepository(db, zap.NewNop()).Create(context.Background(), u))
	return u
}

func seedInvoice(t *testing.T, db *sql.DB, submitter string, createdAt time.Time, mutate ...func(*entity.Invoice)) *entity.Invoice {
	t.Helper()
	inv := &entity.Invoice{
		ID:               uuid.NewString(),
		SubmittedBy:      submitter,
		Category:         entity.CategoryVendorPayment,
		Status:           entity.StatusPendingReview,
		ExtractionStatus: entity.ExtractionPending,
		FileRef:          "file.pdf",
		OriginalFilename: "invoice.pdf",
		FileSize:         1024,
		CreatedAt:        createdAt.UTC(),
		UpdatedAt:        createdAt.UTC(),
	}
	for _, m := range mutate {
		m(inv)
	}
	inv.FileRef = inv.ID + ".pdf"
	require.NoError(t, NewInvoiceRepository(db, zap.NewNop()).Create(context.Background(), inv))
	return inv
}

func seedExtracted(t *testing.T, db *sql.DB, invoiceID, vendor, number, date, total string) *entity.ExtractedData {
	t.Helper()
	now := time.Now().UTC()
	data := &entity.ExtractedData{
		ID:               uuid.NewString(),
		InvoiceID:        invoiceID,
		ConfidenceScores: map[string]float64{"vendor_name": 0.9},
		LineItems:        []entity.LineItem{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if vendor != "" {
		data.VendorName = &vendor
	}
	if number != "" {
		data.InvoiceNumber = &number
	}
	if date != "" {
		data.InvoiceDate = &date
	}
	if total != "" {
		data.GrandTotal = decimal.NewNullDecimal(decimal.RequireFromString(total))
	}
	require.NoError(t, NewExtractedDataRepository(db, zap.NewNop()).Save(context.Background(), data))
	return data
}
