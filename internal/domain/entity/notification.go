package entity

import "time"

// Notification is an entry in a user's inbox
type Notification struct {
	ID        string               `json:"id"`
	UserID    string               `json:"user_id"`
	InvoiceID *string              `json:"invoice_id,omitempty"`
	Message   string               `json:"message"`
	Read      bool                 `json:"read"`
	CreatedAt time.Time            `json:"created_at"`
	Invoice   *NotificationInvoice `json:"invoice,omitempty"`
}

// NotificationInvoice is the invoice summary shown next to a notification
type NotificationInvoice struct {
	ID               string        `json:"id"`
	OriginalFilename string        `json:"original_filename"`
	Status           InvoiceStatus `json:"status"`
}

// Pagination describes one page of a listing
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes the page count for total rows
func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// NotificationPage is the result of listing a user's notifications
type NotificationPage struct {
	Items       []*Notification `json:"notifications"`
	UnreadCount int             `json:"unread_count"`
	Pagination  Pagination      `json:"pagination"`
}
