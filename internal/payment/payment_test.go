package payment_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/storefront/internal/payment"
)

type MockProcessor struct {
	mock.Mock
}

func (m *MockProcessor) CreateIntent(ctx context.Context, params payment.CreateParams) (*payment.Intent, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockProcessor) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func (m *MockProcessor) ConfirmIntent(ctx context.Context, id string, params payment.ConfirmParams) (*payment.Intent, error) {
	args := m.Called(ctx, id, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Intent), args.Error(1)
}

func TestMemoryProcessor_IdempotencyKeyReusesIntent(t *testing.T) {
	ctx := context.Background()
	p := payment.NewMemoryProcessor()

	params := payment.CreateParams{Amount: 39900, Currency: "inr", IdempotencyKey: "k1", Metadata: map[string]string{"userId": "u1"}}
	first, err := p.CreateIntent(ctx, params)
	require.NoError(t, err)
	second, err := p.CreateIntent(ctx, params)
	require.NoError(t, err)
	other, err := p.CreateIntent(ctx, payment.CreateParams{Amount: 39900, Currency: "inr", IdempotencyKey: "k2"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.ClientSecret, second.ClientSecret)
	assert.NotEqual(t, first.ID, other.ID)
	assert.Equal(t, payment.StatusRequiresPaymentMethod, first.Status)
	assert.Equal(t, "u1", first.Metadata["userId"])
	assert.Contains(t, first.ClientSecret, first.ID+"_secret_")
}

func TestMemoryProcessor_RetrieveUnknown(t *testing.T) {
	_, err := payment.NewMemoryProcessor().RetrieveIntent(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, payment.ErrIntentNotFound)
}

func TestConfirmer_ConfirmPayment(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		wantStatus   payment.Status
		wantRedirect bool
		wantErr      error
	}{
		{name: "succeeded", method: payment.MethodCardVisa, wantStatus: payment.StatusSucceeded},
		{name: "requires_action", method: payment.MethodCardRequires3DS, wantStatus: payment.StatusRequiresAction, wantRedirect: true},
		{name: "processing", method: payment.MethodCardProcessing, wantStatus: payment.StatusProcessing},
		{name: "declined", method: payment.MethodCardDeclined, wantErr: payment.ErrCardDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			p := payment.NewMemoryProcessor()
			intent, err := p.CreateIntent(ctx, payment.CreateParams{Amount: 1000, Currency: "inr"})
			require.NoError(t, err)

			c := payment.NewConfirmer(p, "http://localhost/checkout/success")
			out, err := c.ConfirmPayment(ctx, intent.ClientSecret, intent.ID, tt.method)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.Status)
			assert.Equal(t, intent.ID, out.IntentID)
			assert.Equal(t, tt.wantRedirect, out.RedirectURL != "")
		})
	}
}

func TestConfirmer_RejectsForeignSecret(t *testing.T) {
	ctx := context.Background()
	p := payment.NewMemoryProcessor()
	a, err := p.CreateIntent(ctx, payment.CreateParams{Amount: 100, Currency: "inr"})
	require.NoError(t, err)
	b, err := p.CreateIntent(ctx, payment.CreateParams{Amount: 100, Currency: "inr"})
	require.NoError(t, err)

	_, err = payment.NewConfirmer(p, "").ConfirmPayment(ctx, a.ClientSecret, b.ID, payment.MethodCardVisa)
	assert.ErrorIs(t, err, payment.ErrInvalidClientSecret)
}

func TestGuardedProcessor_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	next := new(MockProcessor)
	next.On("RetrieveIntent", mock.Anything, "pi_1").Return(nil, errors.New("connection refused")).Times(3)

	g := payment.NewGuardedProcessor(next, payment.BreakerSettings{Timeout: time.Second, MaxFailures: 3, Cooldown: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := g.RetrieveIntent(ctx, "pi_1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, payment.ErrUnavailable)
	}

	_, err := g.RetrieveIntent(ctx, "pi_1")
	assert.ErrorIs(t, err, payment.ErrUnavailable)
	next.AssertNumberOfCalls(t, "RetrieveIntent", 3)
}

func TestGuardedProcessor_BusinessErrorsKeepCircuitClosed(t *testing.T) {
	ctx := context.Background()
	next := new(MockProcessor)
	next.On("RetrieveIntent", mock.Anything, "pi_missing").Return(nil, payment.ErrIntentNotFound)

	g := payment.NewGuardedProcessor(next, payment.BreakerSettings{MaxFailures: 2, Cooldown: time.Minute})

	for i := 0; i < 5; i++ {
		_, err := g.RetrieveIntent(ctx, "pi_missing")
		assert.ErrorIs(t, err, payment.ErrIntentNotFound)
	}
	next.AssertNumberOfCalls(t, "RetrieveIntent", 5)
}

func TestGuardedProcessor_AppliesTimeout(t *testing.T) {
	next := new(MockProcessor)
	next.On("CreateIntent", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, hasDeadline := ctx.Deadline()
			assert.True(t, hasDeadline)
		}).
		Return(&payment.Intent{ID: "pi_1"}, nil)

	g := payment.NewGuardedProcessor(next, payment.DefaultBreakerSettings())
	intent, err := g.CreateIntent(context.Background(), payment.CreateParams{Amount: 100})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", intent.ID)
}

func TestStatus_Finished(t *testing.T) {
	tests := []struct {
		status payment.Status
		want   bool
	}{
		{status: payment.StatusRequiresPaymentMethod, want: false},
		{status: payment.StatusRequiresAction, want: false},
		{status: payment.StatusProcessing, want: false},
		{status: payment.StatusSucceeded, want: true},
		{status: payment.StatusCanceled, want: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.Finished())
		})
	}
}
