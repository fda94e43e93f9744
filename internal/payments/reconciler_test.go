package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scrimhub/internal/common/events"
)

// perOrderBackend answers status checks from a map.
type perOrderBackend struct {
	fakeBackend
	byOrder map[string]statusReply
}

func (b *perOrderBackend) Status(_ context.Context, id string) (*PaymentStatus, error) {
	r := b.byOrder[id]
	if r.err != nil {
		return nil, r.err
	}
	return &PaymentStatus{Success: true, MerchantOrderID: id, Status: r.status, TournamentID: 7}, nil
}

func TestReconciler_Run(t *testing.T) {
	backend := &perOrderBackend{
		fakeBackend: fakeBackend{pending: []PaymentRecord{
			{MerchantOrderID: "M1"}, {MerchantOrderID: "M2"}, {MerchantOrderID: "M3"}, {MerchantOrderID: "M4"},
		}},
		byOrder: map[string]statusReply{
			"M1": {status: StatusCompleted},
			"M2": {status: StatusFailed},
			"M3": {status: StatusPending},
			"M4": {err: errors.New("timeout")},
		},
	}
	store := newFakeStore()
	require.NoError(t, store.Save(context.Background(), &PaymentSession{MerchantOrderID: "M1"}))
	pub := &recordingPublisher{}

	report, err := NewReconciler(backend, store, pub, testLogger()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReconcileReport{Checked: 4, Completed: 1, Failed: 1, Pending: 1, Errors: 1}, report)
	assert.Equal(t, []string{events.EventPaymentCompleted, events.EventPaymentFailed}, pub.types())

	_, err = store.LastOrderID(context.Background())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestReconciler_ListError(t *testing.T) {
	backend := &perOrderBackend{fakeBackend: fakeBackend{pendingErr: &APIError{StatusCode: 503}}}

	_, err := NewReconciler(backend, nil, nil, testLogger()).Run(context.Background())
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}

// ctxStore fails writes made on a done context, like a real database driver.
type ctxStore struct {
	*fakeStore
}

func (s ctxStore) Clear(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeStore.Clear(ctx, id)
}

type cancellingBackend struct {
	perOrderBackend
	cancel context.CancelFunc
}

func (b *cancellingBackend) Status(ctx context.Context, id string) (*PaymentStatus, error) {
	b.cancel()
	return b.perOrderBackend.Status(ctx, id)
}

func TestReconciler_ShutdownMidPassStillClears(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend := &cancellingBackend{
		perOrderBackend: perOrderBackend{
			fakeBackend: fakeBackend{pending: []PaymentRecord{{MerchantOrderID: "M1"}, {MerchantOrderID: "M2"}}},
			byOrder:     map[string]statusReply{"M1": {status: StatusCompleted}},
		},
		cancel: cancel,
	}
	store := ctxStore{newFakeStore()}
	require.NoError(t, store.Save(context.Background(), &PaymentSession{MerchantOrderID: "M1"}))
	pub := &recordingPublisher{}

	report, err := NewReconciler(backend, store, pub, testLogger()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, []string{events.EventPaymentCompleted}, pub.types())

	_, err = store.Get(context.Background(), "M1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
