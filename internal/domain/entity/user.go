package entity

import "time"

// User is an employee or accounts staff member
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       Role      `json:"role"`
	LarkOpenID *string   `json:"lark_open_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Principal is the authenticated caller of an operation
type Principal struct {
	UserID string
	Role   Role
}
