package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// NotificationService manages the per-user inbox
type NotificationService interface {
	// Notify enqueues a message for one user. Call it inside the transaction of the change.
	Notify(ctx context.Context, userID, invoiceID, message string) (*entity.Notification, error)

	// NotifyRole enqueues the message for every user holding the role
	NotifyRole(ctx context.Context, role entity.Role, invoiceID, message string) ([]*entity.Notification, error)

	List(ctx context.Context, userID string, page, limit int) (*entity.NotificationPage, error)
	MarkRead(ctx context.Context, notificationID, userID string) (*entity.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type notificationServiceImpl struct {
	notificationRepo port.NotificationRepository
	userRepo         port.UserRepository
	logger           Logger
}

func NewNotificationService(
	notificationRepo port.NotificationRepository,
	userRepo port.UserRepository,
	logger Logger,
) NotificationService {
	return &notificationServiceImpl{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		logger:           orNop(logger),
	}
}

func (s *notificationServiceImpl) Notify(ctx context.Context, userID, invoiceID, message string) (*entity.Notification, error) {
	n := &entity.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if invoiceID != "" {
		n.InvoiceID = &invoiceID
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (s *notificationServiceImpl) NotifyRole(ctx context.Context, role entity.Role, invoiceID, message string) ([]*entity.Notification, error) {
	users, err := s.userRepo.ListByRole(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("list %s users: %w", role, err)
	}

	created := make([]*entity.Notification, 0, len(users))
	for _, u := range users {
		n, err := s.Notify(ctx, u.ID, invoiceID, message)
		if err != nil {
			return nil, err
		}
		created = append(created, n)
	}
	return created, nil
}

func (s *notificationServiceImpl) List(ctx context.Context, userID string, page, limit int) (*entity.NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = entity.DefaultPageLimit
	}
	if limit > entity.MaxPageLimit {
		limit = entity.MaxPageLimit
	}

	items, err := s.notificationRepo.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	total, err := s.notificationRepo.CountByUser(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}
	unread, err := s.notificationRepo.CountByUser(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}

	return &entity.NotificationPage{
		Items:       items,
		UnreadCount: unread,
		Pagination:  entity.NewPagination(page, limit, total),
	}, nil
}

func (s *notificationServiceImpl) MarkRead(ctx context.Context, notificationID, userID string) (*entity.Notification, error) {
	n, err := s.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return nil, apperr.NotFound("Notification not found")
	}
	if n.UserID != userID {
		return nil, apperr.Forbidden("Not your notification")
	}

	if err := s.notificationRepo.MarkRead(ctx, notificationID); err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	n.Read = true
	return n, nil
}

func (s *notificationServiceImpl) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.notificationRepo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	s.logger.Info("Marked notifications read", "user_id", userID, "count", updated)
	return updated, nil
}
