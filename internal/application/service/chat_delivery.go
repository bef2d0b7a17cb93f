package service

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-approval/internal/application/port"
	"github.com/garyjia/invoice-approval/internal/domain/event"
)

// NewChatDeliveryHandler forwards notification.created events to the recipient's chat account.
// Users without a chat id are skipped.
func NewChatDeliveryHandler(userRepo port.UserRepository, sender port.MessageSender, logger Logger) func(ctx context.Context, evt *event.Event) error {
	logger = orNop(logger)
	return func(ctx context.Context, evt *event.Event) error {
		if evt.Type != event.TypeNotificationCreated {
			return nil
		}
		userID := evt.GetPayloadString(event.KeyUserID)
		message := evt.GetPayloadString(event.KeyMessage)
		if userID == "" || message == "" {
			return nil
		}

		user, err := userRepo.GetByID(ctx, userID)
		if err != nil {
			return fmt.Errorf("load notification recipient: %w", err)
		}
		if user == nil || user.LarkOpenID == nil || *user.LarkOpenID == "" {
			return nil
		}

		if err := sender.SendText(ctx, *user.LarkOpenID, message); err != nil {
			return fmt.Errorf("deliver notification %s: %w", evt.GetPayloadString(event.KeyNotificationID), err)
		}
		logger.Info("Notification delivered to chat", "user_id", userID, "invoice_id", evt.InvoiceID)
		return nil
	}
}
