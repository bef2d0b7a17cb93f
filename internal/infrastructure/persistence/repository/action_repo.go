package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// ActionRepository implements port.ActionRepository
type ActionRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewActionRepository creates a new audit action repository
func NewActionRepository(db *sql.DB, logger *zap.Logger) port.ActionRepository {
	return &ActionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry. Entries are never updated or deleted.
func (r *ActionRepository) Create(ctx context.Context, action *entity.InvoiceAction) error {
	query := `
		INSERT INTO invoice_actions (id, invoice_id, user_id, action, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		action.ID, action.InvoiceID, action.UserID, action.Action, action.Comment, action.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create invoice action",
			zap.String("invoice_id", action.InvoiceID),
			zap.String("action", string(action.Action)),
			zap.Error(err))
		return fmt.Errorf("failed to create invoice action: %w", err)
	}
	return nil
}

// ListByInvoiceID returns the audit trail of an invoice with the acting users, oldest first
func (r *ActionRepository) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.InvoiceAction, error) {
	query := `
		SELECT a.id, a.invoice_id, a.user_id, a.action, a.comment, a.created_at,
			u.id, u.username, u.email, u.role
		FROM invoice_actions a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.invoice_id = ?
		ORDER BY a.created_at ASC, a.rowid ASC
	`
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoice actions: %w", err)
	}
	defer rows.Close()

	actions := []*entity.InvoiceAction{}
	for rows.Next() {
		var (
			a                         entity.InvoiceAction
			comment                   sql.NullString
			userID, name, email, role sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.InvoiceID, &a.UserID, &a.Action, &comment, &a.CreatedAt,
			&userID, &name, &email, &role); err != nil {
			return nil, fmt.Errorf("failed to scan invoice action: %w", err)
		}
		a.Comment = stringPtr(comment)
		if userID.Valid {
			a.User = &entity.User{ID: userID.String, Username: name.String, Email: email.String, Role: entity.Role(role.String)}
		}
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}

var _ port.ActionRepository = (*ActionRepository)(nil)
