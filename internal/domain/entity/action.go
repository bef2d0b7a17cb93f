package entity

import "time"

// InvoiceAction is an immutable audit entry
type InvoiceAction struct {
	ID        string     `json:"id"`
	InvoiceID string     `json:"invoice_id"`
	UserID    string     `json:"user_id"`
	Action    ActionType `json:"action"`
	Comment   *string    `json:"comment,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	User      *User      `json:"user,omitempty"`
}
