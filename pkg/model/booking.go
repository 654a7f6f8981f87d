package model

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingDraft      BookingStatus = "draft"
	BookingInProgress BookingStatus = "in_progress"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingCancelled  BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingDraft, BookingInProgress, BookingConfirmed, BookingCancelled:
		return true
	}
	return false
}

// Booking is a wizard draft. Slots hold each step's payload verbatim and
// TotalAmount is always derived from Selection and Addons.
type Booking struct {
	ID          string        `json:"id" bson:"_id,omitempty"`
	OwnerID     string        `json:"owner_id,omitempty" bson:"owner_id,omitempty"`
	Search      StepData      `json:"search,omitempty" bson:"search,omitempty"`
	Selection   StepData      `json:"selection,omitempty" bson:"selection,omitempty"`
	Travelers   StepData      `json:"travelers,omitempty" bson:"travelers,omitempty"`
	Addons      StepData      `json:"addons,omitempty" bson:"addons,omitempty"`
	Review      StepData      `json:"review,omitempty" bson:"review,omitempty"`
	TotalAmount float64       `json:"total_amount" bson:"total_amount"`
	Status      BookingStatus `json:"status" bson:"status"`
	Version     int64         `json:"version" bson:"version"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	CancelledAt *time.Time    `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

func (b *Booking) Slot(step Step) StepData {
	switch step {
	case StepSearch:
		return b.Search
	case StepSelection:
		return b.Selection
	case StepTravelers:
		return b.Travelers
	case StepAddons:
		return b.Addons
	case StepReview:
		return b.Review
	}
	return nil
}

func (b *Booking) SetSlot(step Step, data StepData) {
	switch step {
	case StepSearch:
		b.Search = data
	case StepSelection:
		b.Selection = data
	case StepTravelers:
		b.Travelers = data
	case StepAddons:
		b.Addons = data
	case StepReview:
		b.Review = data
	}
}

func (b *Booking) IsOwned() bool {
	return b.OwnerID != ""
}

// AccessibleBy reports whether caller may read or mutate the booking.
// Unowned drafts are open to everyone; owned ones only to their owner.
func (b *Booking) AccessibleBy(caller Caller) bool {
	return !b.IsOwned() || b.OwnerID == caller.UserID
}

// Step is a wizard step index, 0 (search) through 4 (review).
type Step int

const (
	StepSearch Step = iota
	StepSelection
	StepTravelers
	StepAddons
	StepReview
)

const StepCount = 5

func (s Step) Valid() bool {
	return s >= StepSearch && s <= StepReview
}

func (s Step) Slot() string {
	switch s {
	case StepSearch:
		return "search"
	case StepSelection:
		return "selection"
	case StepTravelers:
		return "travelers"
	case StepAddons:
		return "addons"
	case StepReview:
		return "review"
	}
	return ""
}

var nextPages = map[Step]string{
	StepSearch:    "/booking1.html",
	StepSelection: "/booking2.html",
	StepTravelers: "/booking3.html",
	StepAddons:    "/booking4.html",
}

// NextURL is the page the client moves to after saving this step. The
// review step has none.
func (s Step) NextURL(bookingID string) string {
	page, ok := nextPages[s]
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s?booking_id=%s", page, bookingID)
}

func CheckoutURL(bookingID string) string {
	return "/checkout.html?booking_id=" + bookingID
}

func DashboardURL(bookingID string) string {
	return "/dashboard.html?booking_id=" + bookingID
}

// StepResult is returned by save_step and confirm.
type StepResult struct {
	BookingID string  `json:"booking_id"`
	Total     float64 `json:"total"`
	NextURL   string  `json:"next_url,omitempty"`
}

// PaymentIntentResult is handed to the client to finish payment.
type PaymentIntentResult struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// PaymentResult is returned by confirm_payment.
type PaymentResult struct {
	PaymentID string `json:"payment_id"`
	TxnRef    string `json:"txn_ref"`
	BookingID string `json:"booking_id"`
	NextURL   string `json:"next_url"`
}
