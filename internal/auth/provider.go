package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/vasiliy-maslov/storefront/internal/devicestore"
	"github.com/vasiliy-maslov/storefront/internal/identity"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("validation failed")
)

// PasswordProvider is the auth provider: password accounts in Postgres and a
// signed session token kept in device storage.
type PasswordProvider struct {
	repo     Repository
	tokens   *TokenIssuer
	storage  devicestore.Storage
	validate *validator.Validate
	hashCost int

	mu   sync.Mutex
	subs map[chan identity.SessionEvent]struct{}
}

func NewPasswordProvider(repo Repository, tokens *TokenIssuer, storage devicestore.Storage) *PasswordProvider {
	return &PasswordProvider{
		repo:     repo,
		tokens:   tokens,
		storage:  storage,
		validate: validator.New(),
		hashCost: bcrypt.DefaultCost,
		subs:     make(map[chan identity.SessionEvent]struct{}),
	}
}

func (p *PasswordProvider) Session(ctx context.Context) (*identity.Identity, error) {
	raw, err := p.storage.Get(ctx, devicestore.SessionKey)
	if errors.Is(err, devicestore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: failed to read session: %w", err)
	}

	claims, err := p.tokens.Parse(string(raw))
	if err != nil {
		log.Info().Err(err).Msg("auth: stored session is no longer valid")
		p.forget(ctx)
		return nil, nil
	}

	tokenID, err := claims.TokenID()
	if err != nil {
		p.forget(ctx)
		return nil, nil
	}
	revoked, err := p.repo.IsTokenRevoked(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if revoked {
		p.forget(ctx)
		return nil, nil
	}

	userID, err := claims.UserID()
	if err != nil {
		p.forget(ctx)
		return nil, nil
	}
	user, err := p.repo.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		p.forget(ctx)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	return user.Identity(), nil
}

func (p *PasswordProvider) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	user, err := p.repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return p.startSession(ctx, user)
}

// SignUp creates an account with the display name as profile metadata and signs it in.
func (p *PasswordProvider) SignUp(ctx context.Context, name, email, password string) (*identity.Identity, error) {
	input := SignUpInput{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email), Password: password}
	if err := p.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %s", ErrValidation, describe(verrs))
		}
		return nil, fmt.Errorf("auth: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), p.hashCost)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to hash password: %w", err)
	}

	user := &User{Email: input.Email, Name: input.Name, PasswordHash: string(hash)}
	if err := p.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("auth: failed to create user: %w", err)
	}

	log.Info().Stringer("user_id", user.ID).Msg("auth: user registered")
	return p.startSession(ctx, user)
}

// SignOut revokes the stored token and forgets it locally.
func (p *PasswordProvider) SignOut(ctx context.Context) error {
	defer p.broadcast(identity.SessionEvent{Kind: identity.EventSignedOut})

	raw, err := p.storage.Get(ctx, devicestore.SessionKey)
	if errors.Is(err, devicestore.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("auth: failed to read session: %w", err)
	}
	defer p.forget(ctx)

	claims, err := p.tokens.Parse(string(raw))
	if err != nil {
		return nil
	}
	tokenID, err := claims.TokenID()
	if err != nil {
		return nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil
	}

	if err := p.repo.RevokeToken(ctx, tokenID, userID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	return nil
}

// Subscribe delivers the latest session event. A subscriber that falls behind
// sees only the most recent one.
func (p *PasswordProvider) Subscribe() (<-chan identity.SessionEvent, func()) {
	ch := make(chan identity.SessionEvent, 1)

	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, ch)
			p.mu.Unlock()
		})
	}
}

func (p *PasswordProvider) startSession(ctx context.Context, user *User) (*identity.Identity, error) {
	token, _, err := p.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}
	if err := p.storage.Set(ctx, devicestore.SessionKey, []byte(token)); err != nil {
		return nil, fmt.Errorf("auth: failed to store session: %w", err)
	}

	id := user.Identity()
	p.broadcast(identity.SessionEvent{Kind: identity.EventSignedIn, Identity: id})
	return id, nil
}

func (p *PasswordProvider) forget(ctx context.Context) {
	if err := p.storage.Delete(ctx, devicestore.SessionKey); err != nil {
		log.Warn().Err(err).Msg("auth: failed to delete stored session")
	}
}

func (p *PasswordProvider) broadcast(ev identity.SessionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for ch := range p.subs {
		select {
		case stale := <-ch:
			log.Debug().Str("event", string(stale.Kind)).Msg("auth: unread session event replaced")
		default:
		}
		ch <- ev
	}
}

func describe(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "email":
			parts = append(parts, "email is not valid")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field())))
		}
	}
	return strings.Join(parts, "; ")
}
