package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	bookingserrors "travelbook/internal/bookings/errors"
	"travelbook/internal/bookings/repository"
	"travelbook/internal/bookings/validator"
	"travelbook/internal/payments/gateway"
	"travelbook/pkg/config"
	mongotx "travelbook/pkg/db/mongo"
	apperrors "travelbook/pkg/errors"
	"travelbook/pkg/events"
	"travelbook/pkg/logger"
	"travelbook/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	createFunc   func(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error)
	retrieveFunc func(ctx context.Context, id string) (*gateway.Intent, error)
	confirmFunc  func(ctx context.Context, id string) (*gateway.Intent, error)
}

func (m *mockGateway) Name() string { return "mock" }

func (m *mockGateway) CreateIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.Intent, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, req)
	}
	return &gateway.Intent{ID: "pi_new", ClientSecret: "pi_new_secret", Status: gateway.StatusRequiresConfirmation, Amount: req.AmountMinor}, nil
}

func (m *mockGateway) RetrieveIntent(ctx context.Context, id string) (*gateway.Intent, error) {
	if m.retrieveFunc != nil {
		return m.retrieveFunc(ctx, id)
	}
	return nil, gateway.ErrIntentNotFound
}

func (m *mockGateway) ConfirmIntent(ctx context.Context, id string) (*gateway.Intent, error) {
	if m.confirmFunc != nil {
		return m.confirmFunc(ctx, id)
	}
	return nil, errors.New("confirm not expected")
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// conflictingRepo fails the first n updates with a version conflict.
type conflictingRepo struct {
	repository.BookingRepository
	conflicts int
	updates   int
}

func (r *conflictingRepo) Update(ctx context.Context, b *model.Booking) error {
	r.updates++
	if r.conflicts > 0 {
		r.conflicts--
		return bookingserrors.ErrVersionConflict
	}
	return r.BookingRepository.Update(ctx, b)
}

type fixture struct {
	svc       *bookingService
	repo      repository.BookingRepository
	payments  repository.PaymentRepository
	gateway   *mockGateway
	publisher *recordingPublisher
}

func newTestConfig() *config.Config {
	return &config.Config{
		PaymentCurrency:     "usd",
		PaymentMethodTypes:  []string{"card"},
		BookingDeleteWindow: 10 * time.Minute,
		Log: logger.New(logger.Config{
			Level:     "info",
			Format:    logger.JSON,
			AddSource: false,
			Service:   "test",
		}),
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := newTestConfig()
	f := &fixture{
		repo:      repository.NewMemoryBookingRepository(),
		payments:  repository.NewMemoryPaymentRepository(),
		gateway:   &mockGateway{},
		publisher: &recordingPublisher{},
	}
	f.svc = NewBookingService(
		f.repo,
		f.payments,
		mongotx.NewNoopTransactionManager(),
		f.gateway,
		f.publisher,
		validator.NewBookingValidator(cfg.Log),
		cfg,
	).(*bookingService)
	return f
}

var (
	alice = model.Caller{UserID: "user-alice"}
	bob   = model.Caller{UserID: "user-bob"}
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, code), "expected %s, got %v", code, err)
}

// draft creates a booking priced at 535.50 owned by caller.
func (f *fixture) draft(t *testing.T, caller model.Caller) string {
	t.Helper()
	ctx := context.Background()
	res, err := f.svc.SaveStep(ctx, caller, 1, "", raw(`{"price": 500}`))
	require.NoError(t, err)
	_, err = f.svc.SaveStep(ctx, caller, 3, res.BookingID, raw(`{"addons": {"meal": 20, "insurance": 15.5}}`))
	require.NoError(t, err)
	return res.BookingID
}

func succeededIntent(id, bookingID string, amount int64) func(context.Context, string) (*gateway.Intent, error) {
	return func(_ context.Context, got string) (*gateway.Intent, error) {
		return &gateway.Intent{
			ID:       got,
			Status:   gateway.StatusSucceeded,
			Amount:   amount,
			Currency: "usd",
			Metadata: map[string]string{gateway.MetadataBookingID: bookingID},
		}, nil
	}
}

func TestWizardToPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SaveStep(ctx, model.Anonymous(), 1, "", raw(`{"price": 500}`))
	require.NoError(t, err)
	assert.Equal(t, 500.0, res.Total)
	assert.Equal(t, "/booking2.html?booking_id="+res.BookingID, res.NextURL)
	id := res.BookingID

	res, err = f.svc.SaveStep(ctx, model.Anonymous(), 3, id, raw(`{"addons": {"meal": 20, "insurance": 15.5}}`))
	require.NoError(t, err)
	assert.Equal(t, 535.5, res.Total)
	assert.Equal(t, "/booking4.html?booking_id="+id, res.NextURL)

	confirmed, err := f.svc.Confirm(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, 535.5, confirmed.Total)
	assert.Equal(t, model.CheckoutURL(id), confirmed.NextURL)

	b, err := f.svc.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, model.BookingInProgress, b.Status)
	assert.Equal(t, alice.UserID, b.OwnerID)

	f.gateway.retrieveFunc = succeededIntent("pi_1", id, 53550)
	paid, err := f.svc.ConfirmPayment(ctx, alice, id, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", paid.TxnRef)
	assert.Equal(t, model.DashboardURL(id), paid.NextURL)

	payment, err := f.svc.GetPayment(ctx, paid.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, 535.5, payment.Amount)
	assert.Equal(t, int64(53550), payment.AmountMinor)
	assert.Equal(t, model.PaymentSuccess, payment.Status)
	assert.Equal(t, "mock", payment.Provider)

	b, err = f.svc.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.NotNil(t, b.ConfirmedAt)

	assert.Equal(t, []string{events.TypeBookingConfirmed, events.TypePaymentRecorded}, f.publisher.types())
}

func TestConfirmPayment_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, alice)
	_, err := f.svc.Confirm(ctx, alice, id)
	require.NoError(t, err)

	f.gateway.retrieveFunc = succeededIntent("pi_1", id, 50000)
	_, err = f.svc.ConfirmPayment(ctx, alice, id, "pi_1")
	assertCode(t, err, apperrors.CodeAmountMismatch)

	_, findErr := f.payments.FindByTxnRef(ctx, "pi_1")
	assert.ErrorIs(t, findErr, bookingserrors.ErrPaymentNotFound)

	b, err := f.svc.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, model.BookingInProgress, b.Status)
}

func TestConfirmPayment_IntentStates(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		confirm  func(ctx context.Context, id string) (*gateway.Intent, error)
		wantCode string
	}{
		{
			name:   "requires confirmation then succeeds",
			status: gateway.StatusRequiresConfirmation,
			confirm: func(_ context.Context, id string) (*gateway.Intent, error) {
				return &gateway.Intent{ID: id, Status: gateway.StatusSucceeded, Amount: 53550}, nil
			},
		},
		{
			name:   "requires confirmation then needs action",
			status: gateway.StatusRequiresConfirmation,
			confirm: func(_ context.Context, id string) (*gateway.Intent, error) {
				return &gateway.Intent{ID: id, Status: gateway.StatusRequiresAction, Amount: 53550}, nil
			},
			wantCode: apperrors.CodePaymentFailed,
		},
		{
			name:   "confirm call fails",
			status: gateway.StatusRequiresConfirmation,
			confirm: func(_ context.Context, _ string) (*gateway.Intent, error) {
				return nil, errors.New("card_declined")
			},
			wantCode: apperrors.CodeProviderError,
		},
		{
			name:     "requires payment method",
			status:   gateway.StatusRequiresPaymentMethod,
			wantCode: apperrors.CodePaymentNotReady,
		},
		{
			name:     "processing",
			status:   gateway.StatusProcessing,
			wantCode: apperrors.CodePaymentNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			id := f.draft(t, alice)

			f.gateway.retrieveFunc = func(_ context.Context, got string) (*gateway.Intent, error) {
				return &gateway.Intent{ID: got, Status: tt.status, Amount: 53550}, nil
			}
			f.gateway.confirmFunc = tt.confirm

			res, err := f.svc.ConfirmPayment(ctx, alice, id, "pi_1")
			if tt.wantCode != "" {
				assertCode(t, err, tt.wantCode)
				b, getErr := f.svc.Get(ctx, alice, id)
				require.NoError(t, getErr)
				assert.NotEqual(t, model.BookingConfirmed, b.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "pi_1", res.TxnRef)
		})
	}
}

func TestConfirmPayment_RetrieveFailureIsProviderError(t *testing.T) {
	f := newFixture(t)
	id := f.draft(t, alice)

	f.gateway.retrieveFunc = func(context.Context, string) (*gateway.Intent, error) {
		return nil, errors.New("stripe unavailable")
	}

	_, err := f.svc.ConfirmPayment(context.Background(), alice, id, "pi_1")
	assertCode(t, err, apperrors.CodeProviderError)
	assert.Equal(t, 502, apperrors.AsAppError(err).StatusCode())
}

func TestConfirmPayment_ReturnsExistingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, alice)
	f.gateway.retrieveFunc = succeededIntent("pi_1", id, 53550)

	first, err := f.svc.ConfirmPayment(ctx, alice, id, "pi_1")
	require.NoError(t, err)

	f.gateway.retrieveFunc = func(context.Context, string) (*gateway.Intent, error) {
		t.Fatal("provider must not be called for a recorded intent")
		return nil, nil
	}
	second, err := f.svc.ConfirmPayment(ctx, alice, id, "pi_1")
	require.NoError(t, err)
	assert.Equal(t, first.PaymentID, second.PaymentID)
}

func TestConfirmPayment_IntentForAnotherBooking(t *testing.T) {
	f := newFixture(t)
	id := f.draft(t, alice)
	f.gateway.retrieveFunc = succeededIntent("pi_1", "someone-else", 53550)

	_, err := f.svc.ConfirmPayment(context.Background(), alice, id, "pi_1")
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestConfirmPayment_CancelledBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, alice)
	_, err := f.svc.Cancel(ctx, alice, id)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(ctx, alice, id, "pi_1")
	assertCode(t, err, apperrors.CodeConflict)
}

func TestSaveStep_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveStep(ctx, alice, 5, "", raw(`{}`))
	assertCode(t, err, apperrors.CodeInvalidInput)

	_, err = f.svc.SaveStep(ctx, alice, -1, "", raw(`{}`))
	assertCode(t, err, apperrors.CodeInvalidInput)

	_, err = f.svc.SaveStep(ctx, alice, 0, "", raw(`[1,2,3]`))
	assertCode(t, err, apperrors.CodeInvalidInput)

	_, err = f.svc.SaveStep(ctx, alice, 0, "not-an-id", raw(`{}`))
	assertCode(t, err, apperrors.CodeInvalidInput)

	_, err = f.svc.SaveStep(ctx, alice, 0, "5f1d7c2e9b1e8a3d4c5b6a79", raw(`{}`))
	assertCode(t, err, apperrors.CodeNotFound)
}

func TestSaveStep_NullClearsSlotAndStepFourHasNoHint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, alice)

	res, err := f.svc.SaveStep(ctx, alice, 3, id, raw(`null`))
	require.NoError(t, err)
	assert.Equal(t, 500.0, res.Total)

	res, err = f.svc.SaveStep(ctx, alice, 4, id, raw(`{"notes": "window seat", "accepted_terms": true}`))
	require.NoError(t, err)
	assert.Empty(t, res.NextURL)

	b, err := f.svc.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Nil(t, b.Addons)
	assert.Equal(t, model.BookingDraft, b.Status)
	assert.True(t, b.Review.ReviewNotes().AcceptedTerms)
}

func TestSaveStep_NonNumericValuesAreSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SaveStep(ctx, alice, 1, "", raw(`{"price": "250.25"}`))
	require.NoError(t, err)
	assert.Equal(t, 250.25, res.Total)

	res, err = f.svc.SaveStep(ctx, alice, 3, res.BookingID, raw(`{"meal": 10, "vip": true, "note": "abc", "seat": null, "bags": [1], "extra": "4.75"}`))
	require.NoError(t, err)
	assert.Equal(t, 265.0, res.Total)

	res, err = f.svc.SaveStep(ctx, alice, 1, res.BookingID, raw(`{"price": "free"}`))
	require.NoError(t, err)
	assert.Equal(t, 14.75, res.Total)
}

func TestSaveStep_RejectsTotalOutOfRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SaveStep(ctx, alice, 1, "", raw(`{"price": 1e307}`))
	assertCode(t, err, apperrors.CodeInvalidInput)

	res, err := f.svc.SaveStep(ctx, alice, 1, "", raw(`{"price": 100}`))
	require.NoError(t, err)

	_, err = f.svc.SaveStep(ctx, alice, 3, res.BookingID, raw(`{"a": 1.7e308, "b": 1.7e308}`))
	assertCode(t, err, apperrors.CodeInvalidInput)

	b, err := f.repo.FindByID(ctx, res.BookingID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, b.TotalAmount)
	assert.Nil(t, b.Addons)

	encoded, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"total_amount":100`)
}

func TestSaveStep_TotalRoundsHalfToEven(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SaveStep(context.Background(), alice, 1, "", raw(`{"price": 10.125}`))
	require.NoError(t, err)
	assert.Equal(t, 10.12, res.Total)
}

func TestSaveStep_BindsAnonymousDraftOnFirstAuthenticatedTouch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SaveStep(ctx, model.Anonymous(), 0, "", raw(`{"origin": "TLV"}`))
	require.NoError(t, err)
	id := res.BookingID

	_, err = f.svc.SaveStep(ctx, alice, 1, id, raw(`{"price": 100}`))
	require.NoError(t, err)

	b, err := f.svc.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, alice.UserID, b.OwnerID)

	_, err = f.svc.SaveStep(ctx, model.Anonymous(), 2, id, raw(`{}`))
	assertCode(t, err, apperrors.CodeOwnershipViolation)
}

func TestSaveStep_RejectsEditsAfterPaymentOrCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, alice)
	_, err := f.svc.Cancel(ctx, alice, id)
	require.NoError(t, err)

	_, err = f.svc.SaveStep(ctx, alice, 1, id, raw(`{"price": 1}`))
	assertCode(t, err, apperrors.CodeConflict)
}

func TestOwnershipIsEnforcedEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, alice)

	before, err := f.svc.Get(ctx, alice, id)
	require.NoError(t, err)

	ops := map[string]func() error{
		"save_step": func() error { _, err := f.svc.SaveStep(ctx, bob, 2, id, raw(`{}`)); return err },
		"confirm":   func() error { _, err := f.svc.Confirm(ctx, bob, id); return err },
		"intent":    func() error { _, err := f.svc.CreatePaymentIntent(ctx, bob, id); return err },
		"pay":       func() error { _, err := f.svc.ConfirmPayment(ctx, bob, id, "pi_1"); return err },
		"cancel":    func() error { _, err := f.svc.Cancel(ctx, bob, id); return err },
		"get":       func() error { _, err := f.svc.Get(ctx, bob, id); return err },
		"delete":    func() error { return f.svc.Delete(ctx, bob, id) },
	}

	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			assertCode(t, op(), apperrors.CodeOwnershipViolation)
		})
	}

	after, err := f.svc.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, alice.UserID, after.OwnerID)
}

func TestAuthenticatedOperationsRejectAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, model.Anonymous())

	_, err := f.svc.Confirm(ctx, model.Anonymous(), id)
	assertCode(t, err, apperrors.CodeUnauthorized)
	_, err = f.svc.CreatePaymentIntent(ctx, model.Anonymous(), id)
	assertCode(t, err, apperrors.CodeUnauthorized)
	_, err = f.svc.Cancel(ctx, model.Anonymous(), id)
	assertCode(t, err, apperrors.CodeUnauthorized)
	_, _, err = f.svc.List(ctx, model.Anonymous(), "", 10, 0)
	assertCode(t, err, apperrors.CodeUnauthorized)
}

func TestConfirm_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, alice)

	first, err := f.svc.Confirm(ctx, alice, id)
	require.NoError(t, err)
	second, err := f.svc.Confirm(ctx, alice, id)
	require.NoError(t, err)

	assert.Equal(t, first.Total, second.Total)
	b, err := f.svc.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, model.BookingInProgress, b.Status)
	assert.Equal(t, []string{events.TypeBookingConfirmed}, f.publisher.types())
}

func TestConfirm_CannotLeaveTerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cancelled := f.draft(t, alice)
	_, err := f.svc.Cancel(ctx, alice, cancelled)
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, alice, cancelled)
	assertCode(t, err, apperrors.CodeConflict)

	paid := f.draft(t, alice)
	f.gateway.retrieveFunc = succeededIntent("pi_9", paid, 53550)
	_, err = f.svc.ConfirmPayment(ctx, alice, paid, "pi_9")
	require.NoError(t, err)
	_, err = f.svc.Confirm(ctx, alice, paid)
	assertCode(t, err, apperrors.CodeConflict)
}

func TestCancel_FromEveryStatus(t *testing.T) {
	setups := map[model.BookingStatus]func(t *testing.T, f *fixture, id string){
		model.BookingDraft: func(*testing.T, *fixture, string) {},
		model.BookingInProgress: func(t *testing.T, f *fixture, id string) {
			_, err := f.svc.Confirm(context.Background(), alice, id)
			require.NoError(t, err)
		},
		model.BookingConfirmed: func(t *testing.T, f *fixture, id string) {
			f.gateway.retrieveFunc = succeededIntent("pi_c", id, 53550)
			_, err := f.svc.ConfirmPayment(context.Background(), alice, id, "pi_c")
			require.NoError(t, err)
		},
		model.BookingCancelled: func(t *testing.T, f *fixture, id string) {
			_, err := f.svc.Cancel(context.Background(), alice, id)
			require.NoError(t, err)
		},
	}

	for status, setup := range setups {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			id := f.draft(t, alice)
			setup(t, f, id)

			b, err := f.svc.Cancel(context.Background(), alice, id)
			require.NoError(t, err)
			assert.Equal(t, model.BookingCancelled, b.Status)
			require.NotNil(t, b.CancelledAt)

			again, err := f.svc.Cancel(context.Background(), alice, id)
			require.NoError(t, err)
			assert.Equal(t, b.CancelledAt.UnixMilli(), again.CancelledAt.UnixMilli())
		})
	}
}

func TestCreatePaymentIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, alice)

	var got gateway.IntentRequest
	f.gateway.createFunc = func(_ context.Context, req gateway.IntentRequest) (*gateway.Intent, error) {
		got = req
		return &gateway.Intent{ID: "pi_77", ClientSecret: "pi_77_secret_x"}, nil
	}

	res, err := f.svc.CreatePaymentIntent(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, "pi_77", res.PaymentIntentID)
	assert.Equal(t, "pi_77_secret_x", res.ClientSecret)
	assert.Equal(t, int64(53550), got.AmountMinor)
	assert.Equal(t, "usd", got.Currency)
	assert.Equal(t, id, got.BookingID)
	assert.Equal(t, []string{"card"}, got.MethodTypes)
}

func TestCreatePaymentIntent_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.SaveStep(ctx, alice, 0, "", raw(`{"origin": "TLV"}`))
	require.NoError(t, err)
	_, err = f.svc.CreatePaymentIntent(ctx, alice, res.BookingID)
	assertCode(t, err, apperrors.CodeInvalidInput)

	id := f.draft(t, alice)
	f.gateway.createFunc = func(context.Context, gateway.IntentRequest) (*gateway.Intent, error) {
		return nil, errors.New("api key revoked")
	}
	_, err = f.svc.CreatePaymentIntent(ctx, alice, id)
	assertCode(t, err, apperrors.CodeProviderError)
}

func TestReconcileIntent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.draft(t, alice)

	intent := &gateway.Intent{
		ID:       "pi_hook",
		Status:   gateway.StatusSucceeded,
		Amount:   53550,
		Currency: "usd",
		Metadata: map[string]string{gateway.MetadataBookingID: id},
	}

	require.NoError(t, f.svc.ReconcileIntent(ctx, intent))
	require.NoError(t, f.svc.ReconcileIntent(ctx, intent))

	b, err := f.svc.Get(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, b.Status)
	assert.Equal(t, []string{events.TypePaymentRecorded}, f.publisher.types())

	assert.NoError(t, f.svc.ReconcileIntent(ctx, &gateway.Intent{ID: "pi_x", Status: gateway.StatusProcessing}))
	assert.NoError(t, f.svc.ReconcileIntent(ctx, &gateway.Intent{ID: "pi_y", Status: gateway.StatusSucceeded}))
}

func TestReconcileIntent_AmountMismatch(t *testing.T) {
	f := newFixture(t)
	id := f.draft(t, alice)

	err := f.svc.ReconcileIntent(context.Background(), &gateway.Intent{
		ID:       "pi_hook",
		Status:   gateway.StatusSucceeded,
		Amount:   100,
		Metadata: map[string]string{gateway.MetadataBookingID: id},
	})
	assertCode(t, err, apperrors.CodeAmountMismatch)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.draft(t, alice)
	second := f.draft(t, alice)
	f.draft(t, bob)
	_, err := f.svc.Cancel(ctx, alice, first)
	require.NoError(t, err)

	all, total, err := f.svc.List(ctx, alice, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	cancelled, total, err := f.svc.List(ctx, alice, "cancelled", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, cancelled, 1)
	assert.Equal(t, first, cancelled[0].ID)

	drafts, _, err := f.svc.List(ctx, alice, "draft", 10, 0)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, second, drafts[0].ID)

	_, _, err = f.svc.List(ctx, alice, "paid", 10, 0)
	assertCode(t, err, apperrors.CodeInvalidInput)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := start
	f.svc.now = func() time.Time { return clock }

	fresh := f.draft(t, alice)
	require.NoError(t, f.svc.Delete(ctx, alice, fresh))
	_, err := f.svc.Get(ctx, alice, fresh)
	assertCode(t, err, apperrors.CodeNotFound)

	old := f.draft(t, alice)
	clock = start.Add(11 * time.Minute)
	err = f.svc.Delete(ctx, alice, old)
	assertCode(t, err, apperrors.CodeForbidden)

	_, err = f.svc.Cancel(ctx, alice, old)
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, alice, old))
}

func TestMutate_RetriesVersionConflicts(t *testing.T) {
	f := newFixture(t)
	id := f.draft(t, alice)

	repo := &conflictingRepo{BookingRepository: f.repo, conflicts: 2}
	f.svc.repo = repo

	_, err := f.svc.Confirm(context.Background(), alice, id)
	require.NoError(t, err)
	assert.Equal(t, 3, repo.updates)

	repo.conflicts = 3
	repo.updates = 0
	_, err = f.svc.SaveStep(context.Background(), alice, 0, id, raw(`{}`))
	assertCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, 3, repo.updates)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	id := f.draft(t, alice)

	_, err := f.svc.Confirm(context.Background(), alice, id)
	require.NoError(t, err)
}
