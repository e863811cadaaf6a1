// Package session implements authflow.SessionProvider over Redis: account
// records with argon2id password hashes, e-mail confirmation tokens,
// password-reset tokens, and an observable current-session value with JWT
// access tokens.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hugoland/authflow"
	"github.com/hugoland/authflow/password"
)

const (
	statusPending = "pending"
	statusActive  = "active"

	fieldID        = "id"
	fieldHash      = "hash"
	fieldStatus    = "status"
	fieldCreatedAt = "created_at"
	fieldConfirm   = "confirm"
)

// Provider-classified messages, shown to the user verbatim by the flow.
var (
	errInvalidEmail      = &authflow.AuthError{Message: "Please enter a valid email address"}
	errDuplicateAccount  = &authflow.AuthError{Message: "Email already registered"}
	errInvalidLogin      = &authflow.AuthError{Message: "Invalid login credentials"}
	errEmailNotConfirmed = &authflow.AuthError{Message: "Email not confirmed"}
	errNoAccount         = &authflow.AuthError{Message: "No account found for this email"}
)

var (
	// ErrBadConfirmToken is returned by ConfirmEmail for an unknown or
	// already-used token.
	ErrBadConfirmToken = errors.New("invalid confirmation token")
	// ErrBadResetToken is returned by CompleteReset for an unknown or
	// expired token.
	ErrBadResetToken = errors.New("invalid reset token")

	errRedisUnavailable = errors.New("session redis unavailable")
)

// Event reports a change of the current-session value, delivered to Watch
// channels. Present is false for sign-out.
type Event struct {
	Session authflow.Session
	Present bool
}

// Options tunes the provider. Zero values fall back to sensible defaults.
type Options struct {
	Prefix   string        // key prefix, default "hf"
	TokenTTL time.Duration // access token lifetime, default 15m
	ResetTTL time.Duration // reset token lifetime, default 30m
	Now      func() time.Time
}

// Provider is a Redis-backed identity service. Safe for concurrent use.
type Provider struct {
	rdb      *redis.Client
	hasher   *password.Argon2
	signKey  []byte
	prefix   string
	tokenTTL time.Duration
	resetTTL time.Duration
	now      func() time.Time

	mu       sync.Mutex
	current  authflow.Session
	present  bool
	token    string
	watchers []chan Event
}

// New wires a Provider. signKey is the HS256 secret for access tokens.
func New(rdb *redis.Client, hasher *password.Argon2, signKey []byte, opts Options) (*Provider, error) {
	if rdb == nil {
		return nil, errors.New("nil redis client")
	}
	if hasher == nil {
		return nil, errors.New("nil password hasher")
	}
	if len(signKey) < 32 {
		return nil, errors.New("signing key must be at least 32 bytes")
	}
	if opts.Prefix == "" {
		opts.Prefix = "hf"
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 15 * time.Minute
	}
	if opts.ResetTTL <= 0 {
		opts.ResetTTL = 30 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Provider{
		rdb:      rdb,
		hasher:   hasher,
		signKey:  signKey,
		prefix:   opts.Prefix,
		tokenTTL: opts.TokenTTL,
		resetTTL: opts.ResetTTL,
		now:      opts.Now,
	}, nil
}

func (p *Provider) accountKey(email string) string {
	return p.prefix + ":acct:" + email
}

func (p *Provider) resetKey(token string) string {
	return p.prefix + ":reset:" + token
}

func normalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.IndexByte(email, '@')
	if at < 1 || at == len(email)-1 {
		return "", false
	}
	return email, true
}

// SignUp creates a pending account. The account cannot sign in until its
// confirmation token is redeemed through ConfirmEmail.
func (p *Provider) SignUp(ctx context.Context, email, pass string) error {
	email, ok := normalizeEmail(email)
	if !ok {
		return errInvalidEmail
	}

	key := p.accountKey(email)
	exists, err := p.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if exists > 0 {
		return errDuplicateAccount
	}

	hash, err := p.hasher.Hash(pass)
	if err != nil {
		return err
	}

	if err := p.rdb.HSet(ctx, key,
		fieldID, uuid.NewString(),
		fieldHash, hash,
		fieldStatus, statusPending,
		fieldCreatedAt, p.now().UTC().Format(time.RFC3339),
		fieldConfirm, uuid.NewString(),
	).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

// ConfirmEmail flips a pending account to active when token matches its
// stored confirmation token. This models the link in the confirmation mail.
func (p *Provider) ConfirmEmail(ctx context.Context, email, token string) error {
	email, ok := normalizeEmail(email)
	if !ok {
		return ErrBadConfirmToken
	}
	key := p.accountKey(email)

	stored, err := p.rdb.HGet(ctx, key, fieldConfirm).Result()
	if errors.Is(err, redis.Nil) {
		return ErrBadConfirmToken
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if token == "" || stored != token {
		return ErrBadConfirmToken
	}

	if err := p.rdb.HSet(ctx, key, fieldStatus, statusActive, fieldConfirm, "").Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

// PendingConfirmToken reports the unredeemed confirmation token for email.
// It exists for the demo and for integration tests standing in for the mail
// channel.
func (p *Provider) PendingConfirmToken(ctx context.Context, email string) (string, error) {
	email, ok := normalizeEmail(email)
	if !ok {
		return "", ErrBadConfirmToken
	}
	token, err := p.rdb.HGet(ctx, p.accountKey(email), fieldConfirm).Result()
	if errors.Is(err, redis.Nil) || token == "" {
		return "", ErrBadConfirmToken
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return token, nil
}

// SignIn verifies credentials and account status, then publishes the new
// current session together with a signed access token.
func (p *Provider) SignIn(ctx context.Context, email, pass string) error {
	email, ok := normalizeEmail(email)
	if !ok {
		return errInvalidLogin
	}

	record, err := p.rdb.HGetAll(ctx, p.accountKey(email)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if len(record) == 0 {
		return errInvalidLogin
	}

	match, err := p.hasher.Verify(pass, record[fieldHash])
	if err != nil || !match {
		return errInvalidLogin
	}
	if record[fieldStatus] != statusActive {
		return errEmailNotConfirmed
	}

	createdAt, err := time.Parse(time.RFC3339, record[fieldCreatedAt])
	if err != nil {
		createdAt = p.now().UTC()
	}
	sess := authflow.Session{
		ID:        record[fieldID],
		Email:     email,
		CreatedAt: createdAt,
	}

	token, err := p.issueToken(sess)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = sess
	p.present = true
	p.token = token
	watchers := append([]chan Event(nil), p.watchers...)
	p.mu.Unlock()

	notify(watchers, Event{Session: sess, Present: true})
	return nil
}

func (p *Provider) issueToken(sess authflow.Session) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:   sess.ID,
		Audience:  jwt.ClaimStrings{"hugoland"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.tokenTTL)),
		ID:        uuid.NewString(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.signKey)
}

// ResetPassword stores a reset token for the account and would hand it to
// the mail channel. The flow shows its own confirmation message; this method
// only fails for unknown accounts or storage trouble.
func (p *Provider) ResetPassword(ctx context.Context, email string) error {
	email, ok := normalizeEmail(email)
	if !ok {
		return errInvalidEmail
	}

	exists, err := p.rdb.Exists(ctx, p.accountKey(email)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if exists == 0 {
		return errNoAccount
	}

	token := uuid.NewString()
	if err := p.rdb.Set(ctx, p.resetKey(token), email, p.resetTTL).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

// CompleteReset redeems a reset token and replaces the account's password
// hash. The token is single-use.
func (p *Provider) CompleteReset(ctx context.Context, token, newPassword string) error {
	email, err := p.rdb.Get(ctx, p.resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrBadResetToken
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}

	hash, err := p.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := p.rdb.HSet(ctx, p.accountKey(email), fieldHash, hash).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	if err := p.rdb.Del(ctx, p.resetKey(token)).Err(); err != nil {
		return fmt.Errorf("%w: %v", errRedisUnavailable, err)
	}
	return nil
}

// SignOut clears the current session and notifies watchers.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = authflow.Session{}
	p.present = false
	p.token = ""
	watchers := append([]chan Event(nil), p.watchers...)
	p.mu.Unlock()

	notify(watchers, Event{Present: false})
	return nil
}

// Current implements authflow.SessionProvider.
func (p *Provider) Current() (authflow.Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.present
}

// AccessToken returns the JWT issued for the current session, empty when
// signed out.
func (p *Provider) AccessToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// Watch returns a channel of session presence changes. The channel is
// buffered and sends never block; a consumer that falls more than the buffer
// behind loses events and should reconcile via Current.
func (p *Provider) Watch() <-chan Event {
	ch := make(chan Event, 4)
	p.mu.Lock()
	p.watchers = append(p.watchers, ch)
	p.mu.Unlock()
	return ch
}

func notify(watchers []chan Event, ev Event) {
	for _, ch := range watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}
