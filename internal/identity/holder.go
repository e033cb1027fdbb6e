package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type EventKind string

const (
	EventSignedIn       EventKind = "SIGNED_IN"
	EventSignedOut      EventKind = "SIGNED_OUT"
	EventTokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// SessionEvent carries the full session snapshot; Identity is nil after sign-out.
type SessionEvent struct {
	Kind     EventKind
	Identity *Identity
}

// Provider is the auth provider boundary.
type Provider interface {
	Session(ctx context.Context) (*Identity, error)
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, name, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
	Subscribe() (<-chan SessionEvent, func())
}

// Source is what stores need from the session: the identity (nil when anonymous)
// and whether the initial session is still being resolved.
type Source interface {
	Current() (*Identity, bool)
}

type Holder struct {
	provider Provider

	mu       sync.RWMutex
	current  *Identity
	loading  bool
	watchers map[chan *Identity]struct{}
}

func NewHolder(provider Provider) *Holder {
	return &Holder{
		provider: provider,
		loading:  true,
		watchers: make(map[chan *Identity]struct{}),
	}
}

func (h *Holder) Current() (*Identity, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current, h.loading
}

// Resolve loads the initial session. A provider failure leaves the shopper anonymous.
func (h *Holder) Resolve(ctx context.Context) {
	id, err := h.provider.Session(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("identity: failed to resolve session, continuing anonymous")
		id = nil
	}
	h.set(id)
}

// Run resolves the session and then applies provider events until ctx is done.
func (h *Holder) Run(ctx context.Context) error {
	events, unsubscribe := h.provider.Subscribe()
	defer unsubscribe()

	h.Resolve(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			log.Debug().Str("event", string(ev.Kind)).Msg("identity: session event")
			h.set(ev.Identity)
		}
	}
}

func (h *Holder) Login(ctx context.Context, email, password string) (*Identity, error) {
	id, err := h.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("identity: sign in: %w", err)
	}
	h.set(id)
	return id, nil
}

func (h *Holder) Register(ctx context.Context, name, email, password string) (*Identity, error) {
	id, err := h.provider.SignUp(ctx, name, email, password)
	if err != nil {
		return nil, fmt.Errorf("identity: sign up: %w", err)
	}
	h.set(id)
	return id, nil
}

// Logout revokes the session with the provider and clears the identity.
// The identity is cleared even when the revoke call fails; the error is returned for reporting only.
func (h *Holder) Logout(ctx context.Context) error {
	err := h.provider.SignOut(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("identity: revoke failed, clearing local session anyway")
	}
	h.set(nil)

	if err != nil {
		return fmt.Errorf("identity: sign out: %w", err)
	}
	return nil
}

// Watch delivers every identity replacement. Only the latest pending value is kept.
func (h *Holder) Watch() (<-chan *Identity, func()) {
	ch := make(chan *Identity, 1)

	h.mu.Lock()
	h.watchers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, ch)
			h.mu.Unlock()
		})
	}
}

func (h *Holder) set(id *Identity) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.current = id
	h.loading = false

	for ch := range h.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- id
	}
}

// Fixed is a Source that always reports the same identity.
type Fixed struct {
	Identity *Identity
	Loading  bool
}

func (f Fixed) Current() (*Identity, bool) {
	return f.Identity, f.Loading
}
