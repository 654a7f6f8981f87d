package model

import "time"

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment records one successful charge. It is never updated.
type Payment struct {
	ID          string        `json:"id" bson:"_id,omitempty"`
	BookingID   string        `json:"booking_id" bson:"booking_id"`
	Amount      float64       `json:"amount" bson:"amount"`
	AmountMinor int64         `json:"amount_minor" bson:"amount_minor"`
	Currency    string        `json:"currency" bson:"currency"`
	Provider    string        `json:"provider" bson:"provider"`
	TxnRef      string        `json:"txn_ref" bson:"txn_ref"`
	Status      PaymentStatus `json:"status" bson:"status"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
}
