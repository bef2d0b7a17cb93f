package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sql.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new notification record
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, invoice_id, message, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		n.ID, n.UserID, n.InvoiceID, n.Message, boolToInt(n.Read), n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

const notificationSelect = `
	SELECT n.id, n.user_id, n.invoice_id, n.message, n.read, n.created_at,
		i.id, i.original_filename, i.status
	FROM notifications n
	LEFT JOIN invoices i ON i.id = n.invoice_id`

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var (
		n                          entity.Notification
		invoiceID                  sql.NullString
		linkedID, filename, status sql.NullString
	)
	if err := row.Scan(&n.ID, &n.UserID, &invoiceID, &n.Message, &n.Read, &n.CreatedAt,
		&linkedID, &filename, &status); err != nil {
		return nil, err
	}
	n.InvoiceID = stringPtr(invoiceID)
	if linkedID.Valid {
		n.Invoice = &entity.NotificationInvoice{
			ID:               linkedID.String,
			OriginalFilename: filename.String,
			Status:           entity.InvoiceStatus(status.String),
		}
	}
	return &n, nil
}

// GetByID retrieves a notification by ID
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	n, err := scanNotification(conn(ctx, r.db).QueryRowContext(ctx, notificationSelect+` WHERE n.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get notification", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// ListByUser returns a page of the user's notifications, newest first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*entity.Notification, error) {
	query := notificationSelect + `
		WHERE n.user_id = ?
		ORDER BY n.created_at DESC, n.rowid DESC
		LIMIT ? OFFSET ?`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	items := []*entity.Notification{}
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

// CountByUser counts the user's notifications, optionally only the unread ones
func (r *NotificationRepository) CountByUser(ctx context.Context, userID string, unreadOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	var count int
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks a single notification as read
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	if _, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user and returns how many changed
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE notifications SET read = 1 WHERE user_id = ? AND read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}

var _ port.NotificationRepository = (*NotificationRepository)(nil)
