package repository

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	bookingserrors "travelbook/internal/bookings/errors"
	"travelbook/pkg/model"

	"github.com/google/uuid"
)

type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]*model.Booking
}

// NewMemoryBookingRepository keeps bookings in process memory. Stored
// values are copied in and out so callers never share state with the store.
func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{bookings: map[string]*model.Booking{}}
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	c.Search = maps.Clone(b.Search)
	c.Selection = maps.Clone(b.Selection)
	c.Travelers = maps.Clone(b.Travelers)
	c.Addons = maps.Clone(b.Addons)
	c.Review = maps.Clone(b.Review)
	return &c
}

func (r *memoryBookingRepository) Create(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	booking.ID = uuid.NewString()
	booking.Version = 1
	r.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *memoryBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return cloneBooking(b), nil
}

func (r *memoryBookingRepository) owned(ownerID string, status model.BookingStatus) []*model.Booking {
	var out []*model.Booking
	for _, b := range r.bookings {
		if b.OwnerID != ownerID || (status != "" && b.Status != status) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *memoryBookingRepository) FindByOwner(_ context.Context, ownerID string, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.owned(ownerID, status)
	if offset >= int64(len(all)) {
		return nil, nil
	}
	end := min(int(offset)+limit, len(all))

	page := make([]*model.Booking, 0, end-int(offset))
	for _, b := range all[offset:end] {
		page = append(page, cloneBooking(b))
	}
	return page, nil
}

func (r *memoryBookingRepository) CountByOwner(_ context.Context, ownerID string, status model.BookingStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.owned(ownerID, status))), nil
}

func (r *memoryBookingRepository) Update(_ context.Context, booking *model.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[booking.ID]
	if !ok {
		return bookingserrors.ErrNotFound
	}
	if stored.Version != booking.Version {
		return bookingserrors.ErrVersionConflict
	}

	booking.Version++
	r.bookings[booking.ID] = cloneBooking(booking)
	return nil
}

func (r *memoryBookingRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[id]; !ok {
		return bookingserrors.ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

type memoryPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*model.Payment
	byTxnRef map[string]string
}

func NewMemoryPaymentRepository() PaymentRepository {
	return &memoryPaymentRepository{
		payments: map[string]*model.Payment{},
		byTxnRef: map[string]string{},
	}
}

func (r *memoryPaymentRepository) Create(_ context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byTxnRef[payment.TxnRef]; exists {
		return fmt.Errorf("%w: %s", bookingserrors.ErrDuplicateTxnRef, payment.TxnRef)
	}

	payment.ID = uuid.NewString()
	stored := *payment
	r.payments[payment.ID] = &stored
	r.byTxnRef[payment.TxnRef] = payment.ID
	return nil
}

func (r *memoryPaymentRepository) FindByID(_ context.Context, id string) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, bookingserrors.ErrPaymentNotFound
	}
	c := *p
	return &c, nil
}

func (r *memoryPaymentRepository) FindByTxnRef(ctx context.Context, txnRef string) (*model.Payment, error) {
	r.mu.RLock()
	id, ok := r.byTxnRef[txnRef]
	r.mu.RUnlock()
	if !ok {
		return nil, bookingserrors.ErrPaymentNotFound
	}
	return r.FindByID(ctx, id)
}
