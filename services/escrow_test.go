package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tailorhub/tailorhub-api/apperr"
	"github.com/tailorhub/tailorhub-api/models"
	"github.com/tailorhub/tailorhub-api/tests/testutil"
)

const webhookSecret = "test-private-key"

type escrowFixture struct {
	*fixture
	escrow  *EscrowCoordinator
	gateway *MockPaymentGateway
	sink    *MockPayoutSink
}

func newEscrowFixture(t *testing.T) *escrowFixture {
	t.Helper()

	f := newFixture(t)
	gateway := NewMockPaymentGateway(webhookSecret)
	sink := NewMockPayoutSink()
	fees := NewFeeCalculator(rate("0.10"), rate("0.015"))
	return &escrowFixture{
		fixture: f,
		escrow:  NewEscrowCoordinator(f.deps, gateway, fees, sink, time.Second),
		gateway: gateway,
		sink:    sink,
	}
}

func (f *escrowFixture) webhook(t *testing.T, reference, status string, amount int64) (string, []byte) {
	t.Helper()
	payload, err := json.Marshal(WebhookEvent{Reference: reference, Status: status, TotalAmount: amount})
	require.NoError(t, err)
	return f.gateway.Sign(payload), payload
}

// completedOrder returns an assigned, completed order priced at total.
func (f *escrowFixture) completedOrder(t *testing.T, total int64) (*models.Order, *models.Customer, *models.Tailor) {
	t.Helper()
	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	tailor := testutil.CreateTailor(t, f.db, "Stitch House", true)
	order := testutil.CreateOrder(t, f.db, customer.ID, uintPtr(tailor.ID), total, models.OrderStatusCompleted)
	return order, customer, tailor
}

func (f *escrowFixture) payoutCount(t *testing.T, orderID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.PayoutInstruction{}).Where("order_id = ?", orderID).Count(&n).Error)
	return n
}

func TestEscrowCaptureConfirmRelease(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	order, _, tailor := f.completedOrder(t, 50000)

	hold, err := f.escrow.Capture(ctx, adminActor, order.ID, 50000, "X")
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusAuthorized, hold.Status)

	sig, payload := f.webhook(t, "X", PaymentStatusPaid, 50000)
	hold, err = f.escrow.ConfirmWebhook(ctx, sig, payload)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusHeld, hold.Status)
	assert.NotNil(t, hold.ConfirmedAt)

	released, err := f.escrow.Release(ctx, adminActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, released.Status)
	assert.Equal(t, int64(5000), released.PlatformFee)
	assert.Equal(t, int64(750), released.GatewayFee)
	assert.Equal(t, int64(44250), released.TailorNet)
	require.Len(t, released.Instructions, 3)

	byKind := map[models.PayoutKind]models.PayoutInstruction{}
	for _, in := range released.Instructions {
		byKind[in.Kind] = in
	}
	assert.Equal(t, int64(44250), byKind[models.PayoutKindTailor].Amount)
	require.NotNil(t, byKind[models.PayoutKindTailor].RecipientID)
	assert.Equal(t, tailor.ID, *byKind[models.PayoutKindTailor].RecipientID)

	_, err = f.escrow.Release(ctx, adminActor, order.ID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyReleased)

	assert.Equal(t, int64(3), f.payoutCount(t, order.ID), "no duplicate payout after a second release")
	assert.Len(t, f.sink.Objects(), 1)
	assert.Len(t, f.sink.Instructions(), 3)
	assert.Equal(t, int64(1), f.auditCount(t, ActionEscrowReleased))

	payouts := f.notifier.Events(EventPayoutReleased)
	require.Len(t, payouts, 1)
	assert.Equal(t, tailor.ID, payouts[0].RecipientID)
}

func TestCaptureRules(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	order, customer, _ := f.completedOrder(t, 50000)
	cancelled := testutil.CreateOrder(t, f.db, customer.ID, nil, 20000, models.OrderStatusCancelled)
	stranger := testutil.CreateCustomer(t, f.db, "Bayo Ade")

	_, err := f.escrow.Capture(ctx, adminActor, order.ID, 49999, "X")
	assert.ErrorIs(t, err, apperr.ErrAmountMismatch)

	_, err = f.escrow.Capture(ctx, adminActor, cancelled.ID, 20000, "Y")
	assert.ErrorIs(t, err, apperr.ErrTerminalState)

	_, err = f.escrow.Capture(ctx, adminActor, 9999, 20000, "Z")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.escrow.Capture(ctx, models.Actor{ID: stranger.ID, Role: models.RoleCustomer}, order.ID, 50000, "X")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.escrow.Capture(ctx, adminActor, order.ID, 50000, "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	first, err := f.escrow.Capture(ctx, adminActor, order.ID, 50000, "X")
	require.NoError(t, err)

	again, err := f.escrow.Capture(ctx, adminActor, order.ID, 50000, "X")
	require.NoError(t, err, "same capture is idempotent")
	assert.Equal(t, first.ID, again.ID)

	_, err = f.escrow.Capture(ctx, adminActor, order.ID, 50000, "OTHER")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	assert.Equal(t, int64(1), f.auditCount(t, ActionEscrowCaptured))
}

func TestCaptureUsesFinalPrice(t *testing.T) {
	f := newEscrowFixture(t)
	order, _, _ := f.completedOrder(t, 50000)
	require.NoError(t, f.db.Model(order).Update("final_price", 52000).Error)

	_, err := f.escrow.Capture(context.Background(), adminActor, order.ID, 50000, "X")
	assert.ErrorIs(t, err, apperr.ErrAmountMismatch)

	hold, err := f.escrow.Capture(context.Background(), adminActor, order.ID, 52000, "X")
	require.NoError(t, err)
	assert.Equal(t, int64(52000), hold.LockedTotal)
}

func TestConfirmWebhook(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	order, customer, _ := f.completedOrder(t, 50000)
	_, err := f.escrow.Capture(ctx, adminActor, order.ID, 50000, "REF-1")
	require.NoError(t, err)

	t.Run("bad signature", func(t *testing.T) {
		_, payload := f.webhook(t, "REF-1", PaymentStatusPaid, 50000)
		_, err := f.escrow.ConfirmWebhook(ctx, "deadbeef", payload)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("non paid event is ignored", func(t *testing.T) {
		sig, payload := f.webhook(t, "REF-1", PaymentStatusExpired, 50000)
		hold, err := f.escrow.ConfirmWebhook(ctx, sig, payload)
		require.NoError(t, err)
		assert.Nil(t, hold)
	})

	t.Run("unknown reference", func(t *testing.T) {
		sig, payload := f.webhook(t, "REF-404", PaymentStatusPaid, 50000)
		_, err := f.escrow.ConfirmWebhook(ctx, sig, payload)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})

	t.Run("paid event holds funds once", func(t *testing.T) {
		sig, payload := f.webhook(t, "REF-1", PaymentStatusPaid, 50000)
		hold, err := f.escrow.ConfirmWebhook(ctx, sig, payload)
		require.NoError(t, err)
		assert.Equal(t, models.EscrowStatusHeld, hold.Status)

		hold, err = f.escrow.ConfirmWebhook(ctx, sig, payload)
		require.NoError(t, err, "redelivery is idempotent")
		assert.Equal(t, models.EscrowStatusHeld, hold.Status)

		held := f.notifier.Events(EventPaymentHeld)
		require.Len(t, held, 1)
		assert.Equal(t, customer.ID, held[0].RecipientID)
		assert.Equal(t, int64(1), f.auditCount(t, ActionEscrowHeld))
	})
}

func TestConfirmWebhookAmountMismatch(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	order, _, _ := f.completedOrder(t, 50000)
	_, err := f.escrow.Capture(ctx, adminActor, order.ID, 50000, "REF-1")
	require.NoError(t, err)

	sig, payload := f.webhook(t, "REF-1", PaymentStatusPaid, 40000)
	hold, err := f.escrow.ConfirmWebhook(ctx, sig, payload)
	assert.ErrorIs(t, err, apperr.ErrAmountMismatch)
	require.NotNil(t, hold)
	assert.Equal(t, models.EscrowStatusOnHold, hold.Status)
	require.NotNil(t, hold.HoldReason)

	_, err = f.escrow.ConfirmWebhook(ctx, sig, payload)
	assert.ErrorIs(t, err, apperr.ErrAmountMismatch)

	sig, payload = f.webhook(t, "REF-1", PaymentStatusPaid, 50000)
	_, err = f.escrow.ConfirmWebhook(ctx, sig, payload)
	require.ErrorIs(t, err, apperr.ErrAmountMismatch, "a hold stays on hold until reviewed")
	assert.Contains(t, err.Error(), "gateway reported 40000, locked total is 50000")

	assert.Len(t, f.notifier.Events(EventOperatorAlert), 1, "redelivery does not alert twice")
	assert.Equal(t, int64(1), f.auditCount(t, ActionEscrowOnHold))

	_, err = f.escrow.Release(ctx, adminActor, order.ID)
	assert.ErrorIs(t, err, apperr.ErrNotReleasable)
}

func TestReleaseRules(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	tailor := testutil.CreateTailor(t, f.db, "Stitch House", true)
	ready := testutil.CreateOrder(t, f.db, customer.ID, uintPtr(tailor.ID), 30000, models.OrderStatusReady)
	unconfirmed := testutil.CreateOrder(t, f.db, customer.ID, uintPtr(tailor.ID), 30000, models.OrderStatusCompleted)
	noCapture := testutil.CreateOrder(t, f.db, customer.ID, uintPtr(tailor.ID), 30000, models.OrderStatusCompleted)

	_, err := f.escrow.Capture(ctx, adminActor, ready.ID, 30000, "READY")
	require.NoError(t, err)
	sig, payload := f.webhook(t, "READY", PaymentStatusPaid, 30000)
	_, err = f.escrow.ConfirmWebhook(ctx, sig, payload)
	require.NoError(t, err)

	_, err = f.escrow.Capture(ctx, adminActor, unconfirmed.ID, 30000, "PENDING")
	require.NoError(t, err)

	_, err = f.escrow.Release(ctx, models.Actor{ID: tailor.ID, Role: models.RoleTailor}, ready.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.escrow.Release(ctx, adminActor, ready.ID)
	assert.ErrorIs(t, err, apperr.ErrNotReleasable, "order not finished")

	_, err = f.escrow.Release(ctx, adminActor, unconfirmed.ID)
	assert.ErrorIs(t, err, apperr.ErrNotReleasable, "gateway has not confirmed")

	_, err = f.escrow.Release(ctx, adminActor, noCapture.ID)
	assert.ErrorIs(t, err, apperr.ErrNotReleasable)

	_, err = f.escrow.Release(ctx, adminActor, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Empty(t, f.sink.Objects())
}

func TestReleaseSurvivesSinkFailure(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	order, _, _ := f.completedOrder(t, 50000)
	_, err := f.escrow.Capture(ctx, adminActor, order.ID, 50000, "X")
	require.NoError(t, err)
	sig, payload := f.webhook(t, "X", PaymentStatusPaid, 50000)
	_, err = f.escrow.ConfirmWebhook(ctx, sig, payload)
	require.NoError(t, err)

	f.sink.FailWith(errors.New("s3 unavailable"))
	hold, err := f.escrow.Release(ctx, adminActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, hold.Status)
	assert.Equal(t, int64(3), f.payoutCount(t, order.ID))

	alerts := f.notifier.Events(EventOperatorAlert)
	require.Len(t, alerts, 1)
	assert.Equal(t, OperatorRecipient, alerts[0].RecipientID)
}

func TestRefund(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	order, customer, _ := f.completedOrder(t, 50000)
	_, err := f.escrow.Capture(ctx, adminActor, order.ID, 50000, "X")
	require.NoError(t, err)
	sig, payload := f.webhook(t, "X", PaymentStatusPaid, 50000)
	_, err = f.escrow.ConfirmWebhook(ctx, sig, payload)
	require.NoError(t, err)

	_, err = f.escrow.Refund(ctx, models.Actor{ID: customer.ID, Role: models.RoleCustomer}, order.ID, 1000)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.escrow.Refund(ctx, adminActor, order.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.escrow.Refund(ctx, adminActor, order.ID, 60000)
	assert.ErrorIs(t, err, apperr.ErrInsufficientHeldFunds)

	hold, err := f.escrow.Refund(ctx, adminActor, order.ID, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), hold.RefundedAmount)
	assert.Equal(t, models.EscrowStatusHeld, hold.Status)

	released, err := f.escrow.Release(ctx, adminActor, order.ID)
	require.NoError(t, err)
	// fees apply to the 40000 still held
	assert.Equal(t, int64(4000), released.PlatformFee)
	assert.Equal(t, int64(600), released.GatewayFee)
	assert.Equal(t, int64(35400), released.TailorNet)

	_, err = f.escrow.Refund(ctx, adminActor, order.ID, 100)
	assert.ErrorIs(t, err, apperr.ErrInsufficientHeldFunds, "no refunds after release")

	refunds := f.notifier.Events(EventRefundIssued)
	require.Len(t, refunds, 1)
	assert.Equal(t, customer.ID, refunds[0].RecipientID)
	assert.Equal(t, int64(4), f.payoutCount(t, order.ID))
}

func TestFullRefundClosesEscrow(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	order := testutil.CreateOrder(t, f.db, customer.ID, nil, 20000, models.OrderStatusPending)
	_, err := f.escrow.Capture(ctx, adminActor, order.ID, 20000, "X")
	require.NoError(t, err)

	hold, err := f.escrow.Refund(ctx, adminActor, order.ID, 20000)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, hold.Status)
	assert.Zero(t, hold.HeldAmount())

	_, err = f.escrow.Refund(ctx, adminActor, order.ID, 1)
	assert.ErrorIs(t, err, apperr.ErrInsufficientHeldFunds)
}

func TestCheckout(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	order := testutil.CreateOrder(t, f.db, customer.ID, nil, 25000, models.OrderStatusPending)
	customerActor := models.Actor{ID: customer.ID, Role: models.RoleCustomer}

	hold, err := f.escrow.Checkout(ctx, customerActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), hold.LockedTotal)
	assert.Equal(t, models.EscrowStatusAuthorized, hold.Status)

	again, err := f.escrow.Checkout(ctx, customerActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, hold.ID, again.ID)
	assert.Len(t, f.gateway.Charges(), 1, "repeat checkout does not charge twice")
}

func TestConcurrentCheckoutChargesOnce(t *testing.T) {
	f := newEscrowFixture(t)
	f.gateway.SetDelay(50 * time.Millisecond)
	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	order := testutil.CreateOrder(t, f.db, customer.ID, nil, 25000, models.OrderStatusPending)
	customerActor := models.Actor{ID: customer.ID, Role: models.RoleCustomer}

	const attempts = 4
	start := make(chan struct{})
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.escrow.Checkout(context.Background(), customerActor, order.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflict)
	}
	assert.GreaterOrEqual(t, succeeded, 1)
	require.Len(t, f.gateway.Charges(), 1, "the customer is charged once")

	var holds []models.EscrowHold
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&holds).Error)
	require.Len(t, holds, 1)
	assert.Equal(t, models.EscrowStatusAuthorized, holds[0].Status)
	assert.Equal(t, f.gateway.Charges()[0].Reference, holds[0].GatewayReference)

	hold, err := f.escrow.Checkout(context.Background(), customerActor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, holds[0].ID, hold.ID)
	assert.Len(t, f.gateway.Charges(), 1)
}

func TestCheckoutReservation(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	customerActor := models.Actor{ID: customer.ID, Role: models.RoleCustomer}

	inFlight := testutil.CreateOrder(t, f.db, customer.ID, nil, 25000, models.OrderStatusPending)
	require.NoError(t, f.db.Create(&models.EscrowHold{
		OrderID:          inFlight.ID,
		GatewayReference: "pending-in-flight",
		LockedTotal:      25000,
		Status:           models.EscrowStatusPending,
	}).Error)

	_, err := f.escrow.Checkout(ctx, customerActor, inFlight.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Empty(t, f.gateway.Charges())

	_, err = f.escrow.Release(ctx, adminActor, inFlight.ID)
	assert.ErrorIs(t, err, apperr.ErrNotReleasable)

	stale := testutil.CreateOrder(t, f.db, customer.ID, nil, 30000, models.OrderStatusPending)
	require.NoError(t, f.db.Create(&models.EscrowHold{
		OrderID:          stale.ID,
		GatewayReference: "pending-stale",
		LockedTotal:      30000,
		Status:           models.EscrowStatusPending,
		CreatedAt:        time.Now().Add(-time.Hour),
	}).Error)

	hold, err := f.escrow.Checkout(ctx, customerActor, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowStatusAuthorized, hold.Status)
	assert.Equal(t, int64(30000), hold.LockedTotal)
	assert.Len(t, f.gateway.Charges(), 1)
}

func TestCheckoutRejections(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	blocked := testutil.CreateCustomer(t, f.db, "Blocked Buyer")
	require.NoError(t, f.db.Model(blocked).Update("is_blocked", true).Error)
	order := testutil.CreateOrder(t, f.db, customer.ID, nil, 25000, models.OrderStatusPending)
	blockedOrder := testutil.CreateOrder(t, f.db, blocked.ID, nil, 25000, models.OrderStatusPending)
	cancelled := testutil.CreateOrder(t, f.db, customer.ID, nil, 25000, models.OrderStatusCancelled)

	_, err := f.escrow.Checkout(ctx, adminActor, order.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.escrow.Checkout(ctx, models.Actor{ID: blocked.ID, Role: models.RoleCustomer}, order.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "not the owner")

	_, err = f.escrow.Checkout(ctx, models.Actor{ID: blocked.ID, Role: models.RoleCustomer}, blockedOrder.ID)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized, "blocked customer")

	_, err = f.escrow.Checkout(ctx, models.Actor{ID: customer.ID, Role: models.RoleCustomer}, cancelled.ID)
	assert.ErrorIs(t, err, apperr.ErrTerminalState)

	assert.Empty(t, f.gateway.Charges())
}

func TestCheckoutGatewayTimeout(t *testing.T) {
	f := newEscrowFixture(t)
	f.escrow.gatewayTimeout = 20 * time.Millisecond
	f.gateway.SetDelay(500 * time.Millisecond)

	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	order := testutil.CreateOrder(t, f.db, customer.ID, nil, 25000, models.OrderStatusPending)

	_, err := f.escrow.Checkout(context.Background(), models.Actor{ID: customer.ID, Role: models.RoleCustomer}, order.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrGatewayTimeout)

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.Retryable())

	var holds int64
	require.NoError(t, f.db.Model(&models.EscrowHold{}).Count(&holds).Error)
	assert.Zero(t, holds)
}

func TestCheckoutGatewayError(t *testing.T) {
	f := newEscrowFixture(t)
	f.gateway.FailWith(errors.New("connection reset"))

	customer := testutil.CreateCustomer(t, f.db, "Ada Obi")
	order := testutil.CreateOrder(t, f.db, customer.ID, nil, 25000, models.OrderStatusPending)

	_, err := f.escrow.Checkout(context.Background(), models.Actor{ID: customer.ID, Role: models.RoleCustomer}, order.ID)
	assert.ErrorIs(t, err, apperr.ErrGateway)
}

func TestEscrowGetAndPreview(t *testing.T) {
	f := newEscrowFixture(t)
	ctx := context.Background()
	order, customer, _ := f.completedOrder(t, 100000)
	stranger := testutil.CreateCustomer(t, f.db, "Bayo Ade")

	fees, err := f.escrow.PreviewFees(ctx, models.Actor{ID: customer.ID, Role: models.RoleCustomer}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, FeeBreakdown{OrderTotal: 100000, PlatformFee: 10000, GatewayFee: 1500, TailorNet: 88500}, fees)

	_, err = f.escrow.Get(ctx, adminActor, order.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound, "no capture yet")

	_, err = f.escrow.Capture(ctx, adminActor, order.ID, 100000, "X")
	require.NoError(t, err)

	hold, err := f.escrow.Get(ctx, models.Actor{ID: customer.ID, Role: models.RoleCustomer}, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "X", hold.GatewayReference)

	_, err = f.escrow.Get(ctx, models.Actor{ID: stranger.ID, Role: models.RoleCustomer}, order.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
