package models

import "time"

// ReceiptState tracks asynchronous PDF generation for a payment.
type ReceiptState string

const (
	ReceiptStateQueued ReceiptState = "queued"
	ReceiptStateReady  ReceiptState = "ready"
	ReceiptStateFailed ReceiptState = "failed"
)

// ReceiptJob records the rendering of a payment receipt. FilePath is
// relative to the receipt storage directory once the job is ready.
type ReceiptJob struct {
	ID          string       `db:"id" json:"id"`
	PaymentID   string       `db:"payment_id" json:"payment_id"`
	State       ReceiptState `db:"state" json:"state"`
	FilePath    string       `db:"file_path" json:"file_path,omitempty"`
	Error       *string      `db:"error" json:"error,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	GeneratedAt *time.Time   `db:"generated_at" json:"generated_at,omitempty"`
}
