package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

func TestExtractedDataRepository_SaveAndGet(t *testing.T) {
	db := openTestDB(t)
	emp := seedUser(t, db, "alice", entity.RoleEmployee)
	inv := seedInvoice(t, db, emp.ID, time.Now())
	repo := NewExtractedDataRepository(db, zap.NewNop())
	ctx := context.Background()

	vendor, terms := "Acme Corp", "Net 30"
	data := &entity.ExtractedData{
		ID:           "ed-1",
		InvoiceID:    inv.ID,
		VendorName:   &vendor,
		PaymentTerms: &terms,
		Subtotal:     decimal.NewNullDecimal(decimal.RequireFromString("1000.00")),
		Tax:          decimal.NewNullDecimal(decimal.RequireFromString("80.25")),
		GrandTotal:   decimal.NewNullDecimal(decimal.RequireFromString("1080.25")),
		ConfidenceScores: map[string]float64{
			"vendor_name": 0.97,
			"grand_total": 0.88,
		},
		LineItems: []entity.LineItem{
			{ID: "li-1", Description: "Widgets", Quantity: decimal.NewNullDecimal(decimal.NewFromInt(4)), UnitPrice: decimal.NewNullDecimal(decimal.NewFromInt(250)), Total: decimal.NewNullDecimal(decimal.NewFromInt(1000))},
			{ID: "li-2", Description: "Shipping"},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, data))

	got, err := repo.GetByInvoiceID(ctx, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "ed-1", got.ID)
	assert.Equal(t, "Acme Corp", *got.VendorName)
	assert.Nil(t, got.InvoiceNumber)
	assert.True(t, got.GrandTotal.Valid)
	assert.True(t, got.GrandTotal.Decimal.Equal(decimal.RequireFromString("1080.25")))
	assert.True(t, got.Tax.Decimal.Equal(decimal.RequireFromString("80.25")))
	assert.InDelta(t, 0.97, got.ConfidenceScores["vendor_name"], 1e-9)

	require.Len(t, got.LineItems, 2)
	assert.Equal(t, "Widgets", got.LineItems[0].Description)
	assert.True(t, got.LineItems[0].Quantity.Decimal.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "Shipping", got.LineItems[1].Description)
	assert.False(t, got.LineItems[1].Total.Valid)

	none, err := repo.GetByInvoiceID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestExtractedDataRepository_SaveReplacesPreviousRecord(t *testing.T) {
	db := openTestDB(t)
	emp := seedUser(t, db, "alice", entity.RoleEmployee)
	inv := seedInvoice(t, db, emp.ID, time.Now())
	first := seedExtracted(t, db, inv.ID, "Old Vendor", "", "", "10")
	require.NoError(t, NewExtractedDataRepository(db, zap.NewNop()).ReplaceLineItems(context.Background(), first.ID,
		[]entity.LineItem{{ID: "old-li", Description: "old"}}))

	second := seedExtracted(t, db, inv.ID, "New Vendor", "", "", "20")

	got, err := NewExtractedDataRepository(db, zap.NewNop()).GetByInvoiceID(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "New Vendor", *got.VendorName)
	assert.Empty(t, got.LineItems)
}

func TestExtractedDataRepository_UpdateAndReplaceLineItems(t *testing.T) {
	db := openTestDB(t)
	emp := seedUser(t, db, "alice", entity.RoleEmployee)
	inv := seedInvoice(t, db, emp.ID, time.Now())
	data := seedExtracted(t, db, inv.ID, "Acme", "INV-1", "", "100")
	repo := NewExtractedDataRepository(db, zap.NewNop())
	ctx := context.Background()

	data.VendorName = nil
	data.GrandTotal = decimal.NewNullDecimal(decimal.RequireFromString("120.5"))
	require.NoError(t, repo.Update(ctx, data))
	require.NoError(t, repo.ReplaceLineItems(ctx, data.ID, []entity.LineItem{
		{ID: "a", Description: "first"},
		{ID: "b", Description: "second"},
	}))

	got, err := repo.GetByInvoiceID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Nil(t, got.VendorName)
	assert.Equal(t, "INV-1", *got.InvoiceNumber)
	assert.True(t, got.GrandTotal.Decimal.Equal(decimal.RequireFromString("120.50")))
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, "first", got.LineItems[0].Description)

	require.NoError(t, repo.ReplaceLineItems(ctx, data.ID, []entity.LineItem{}))
	got, err = repo.GetByInvoiceID(ctx, inv.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LineItems)
	assert.Empty(t, got.LineItems)
}

func TestExtractedDataRepository_DuplicateLookups(t *testing.T) {
	db := openTestDB(t)
	emp := seedUser(t, db, "alice", entity.RoleEmployee)
	base := time.Now().Add(-time.Hour)

	earliest := seedInvoice(t, db, emp.ID, base)
	later := seedInvoice(t, db, emp.ID, base.Add(time.Minute))
	current := seedInvoice(t, db, emp.ID, base.Add(2*time.Minute))
	other := seedInvoice(t, db, emp.ID, base.Add(3*time.Minute))

	seedExtracted(t, db, later.ID, "Acme", "INV-1", "2025-01-10", "100.00")
	seedExtracted(t, db, earliest.ID, "Acme", "INV-1", "2025-01-09", "100")
	seedExtracted(t, db, current.ID, "Acme", "INV-1", "2025-01-10", "100")
	seedExtracted(t, db, other.ID, "Globex", "", "", "100")

	repo := NewExtractedDataRepository(db, zap.NewNop())
	ctx := context.Background()

	match, err := repo.FindByNumberAndVendor(ctx, current.ID, "INV-1", "Acme")
	require.NoError(t, err)
	assert.Equal(t, earliest.ID, match, "earliest submission wins")

	match, err = repo.FindByNumberAndVendor(ctx, current.ID, "INV-2", "Acme")
	require.NoError(t, err)
	assert.Empty(t, match)

	match, err = repo.FindByVendorAndTotal(ctx, current.ID, "Acme", decimal.RequireFromString("100.000"), nil)
	require.NoError(t, err)
	assert.Equal(t, earliest.ID, match, "amounts compare by value")

	date := "2025-01-10"
	match, err = repo.FindByVendorAndTotal(ctx, current.ID, "Acme", decimal.NewFromInt(100), &date)
	require.NoError(t, err)
	assert.Equal(t, later.ID, match, "the invoice date narrows the match")

	match, err = repo.FindByVendorAndTotal(ctx, other.ID, "Globex", decimal.NewFromInt(100), nil)
	require.NoError(t, err)
	assert.Empty(t, match, "an invoice never matches itself")

	match, err = repo.FindByNumberAndVendor(ctx, earliest.ID, "INV-1", "Acme")
	require.NoError(t, err)
	assert.Empty(t, match, "later submissions are never candidates")

	match, err = repo.FindByVendorAndTotal(ctx, later.ID, "Acme", decimal.NewFromInt(100), nil)
	require.NoError(t, err)
	assert.Equal(t, earliest.ID, match)
}
