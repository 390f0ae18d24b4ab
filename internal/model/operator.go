package model

import "time"

// Operator is an acquisitions staff account allowed to upload batches.
type Operator struct {
	ID           string    `json:"id"`
	Login        string    `json:"login"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
