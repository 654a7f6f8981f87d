package receipt

import (
	"bytes"
	"testing"
	"time"

	"travelbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "receipt-abc123.pdf", FileName("abc123"))
}

func TestRender(t *testing.T) {
	booking := &model.Booking{
		ID:        "b1",
		Search:    model.StepData{"origin": "TLV", "destination": "Zürich", "depart_date": "2026-11-01"},
		Selection: model.StepData{"price": 500, "title": "Economy"},
		Travelers: model.StepData{"travelers": []any{map[string]any{"name": "Ada"}}},
		Addons:    model.StepData{"addons": map[string]any{"meal": 20, "insurance": 15.5}},
		Status:    model.BookingConfirmed,
	}
	payment := &model.Payment{
		ID:        "p1",
		BookingID: "b1",
		Amount:    535.5,
		Currency:  "usd",
		Provider:  "sandbox",
		TxnRef:    "pi_123",
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}

	out, err := Render(booking, payment)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Greater(t, len(out), 500)
}

func TestRender_SparseBooking(t *testing.T) {
	out, err := Render(&model.Booking{ID: "b2"}, &model.Payment{ID: "p2", CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}
