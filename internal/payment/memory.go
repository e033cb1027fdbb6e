package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gofrs/uuid"
)

// Test payment methods understood by MemoryProcessor.
const (
	MethodCardVisa        = "pm_card_visa"
	MethodCardDeclined    = "pm_card_chargeDeclined"
	MethodCardRequires3DS = "pm_card_threeDSecure2Required"
	MethodCardProcessing  = "pm_card_processing"
)

const memoryRedirectTemplate = "https://hooks.memory.local/3ds/%s"

// MemoryProcessor is an in-process payment processor for development and tests.
// It honours idempotency keys the way the hosted processor does.
type MemoryProcessor struct {
	mu      sync.Mutex
	intents map[string]*Intent
	byKey   map[string]string
	calls   int
}

func NewMemoryProcessor() *MemoryProcessor {
	return &MemoryProcessor{
		intents: make(map[string]*Intent),
		byKey:   make(map[string]string),
	}
}

func (m *MemoryProcessor) CreateIntent(ctx context.Context, p CreateParams) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if p.IdempotencyKey != "" {
		if id, ok := m.byKey[p.IdempotencyKey]; ok {
			return cloneIntent(m.intents[id]), nil
		}
	}

	raw, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("memory processor: %w", err)
	}
	id := "pi_" + strings.ReplaceAll(raw.String(), "-", "")[:24]

	metadata := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		metadata[k] = v
	}
	intent := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + strings.ReplaceAll(raw.String(), "-", "")[24:],
		Amount:       p.Amount,
		Currency:     p.Currency,
		Status:       StatusRequiresPaymentMethod,
		Metadata:     metadata,
	}
	m.intents[id] = intent
	if p.IdempotencyKey != "" {
		m.byKey[p.IdempotencyKey] = id
	}
	return cloneIntent(intent), nil
}

func (m *MemoryProcessor) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	intent, ok := m.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}
	return cloneIntent(intent), nil
}

func (m *MemoryProcessor) ConfirmIntent(ctx context.Context, id string, p ConfirmParams) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	intent, ok := m.intents[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}
	if intent.Status == StatusSucceeded {
		return cloneIntent(intent), nil
	}

	intent.NextActionURL = ""
	switch p.PaymentMethod {
	case MethodCardDeclined:
		intent.Status = StatusRequiresPaymentMethod
		return nil, ErrCardDeclined
	case MethodCardRequires3DS:
		intent.Status = StatusRequiresAction
		intent.NextActionURL = fmt.Sprintf(memoryRedirectTemplate, id)
	case MethodCardProcessing:
		intent.Status = StatusProcessing
	default:
		intent.Status = StatusSucceeded
	}
	return cloneIntent(intent), nil
}

// SetStatus forces an intent into status, as a webhook from the processor would.
func (m *MemoryProcessor) SetStatus(id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	intent, ok := m.intents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrIntentNotFound, id)
	}
	intent.Status = status
	return nil
}

// Calls returns how many processor operations were served.
func (m *MemoryProcessor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func cloneIntent(in *Intent) *Intent {
	out := *in
	if in.Metadata != nil {
		out.Metadata = make(map[string]string, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
