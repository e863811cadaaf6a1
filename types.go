package authflow

import (
	"context"
	"time"
)

// Mode selects which authentication flow a submission drives.
type Mode uint8

const (
	// ModeSignIn is the default flow: credentials in, session out.
	ModeSignIn Mode = iota
	// ModeSignUp creates an account that stays pending until its e-mail
	// address is confirmed.
	ModeSignUp
	// ModeReset requests a password-reset e-mail; only the e-mail field is
	// relevant.
	ModeReset
)

// String describes the mode for audit events and logs.
func (m Mode) String() string {
	switch m {
	case ModeSignIn:
		return "signin"
	case ModeSignUp:
		return "signup"
	case ModeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Form holds the user-entered fields of the auth dialog. Password and
// ConfirmPassword are meaningful only outside ModeReset; ConfirmPassword only
// in ModeSignUp. The zero value is the cleared form.
type Form struct {
	Email           string
	Password        string
	ConfirmPassword string
	RevealPassword  bool
}

// Session is the provider-owned identity of a signed-in user. The core only
// reads it; it never mutates provider state through it.
type Session struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// AuthError is a provider-classified failure. Its Message is shown to the
// user verbatim; any error that is not an AuthError is reported as a generic
// unexpected failure instead.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// SessionProvider is the external identity service consumed by [Flow].
//
// SignUp leaves the account pending e-mail confirmation; SignIn refuses
// pending accounts. All four mutating calls return either nil, an
// *[AuthError] with a user-presentable message, or an unclassified error.
type SessionProvider interface {
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	ResetPassword(ctx context.Context, email string) error
	SignOut(ctx context.Context) error

	// Current reports the active session, if any.
	Current() (Session, bool)
}

// Snapshot is a point-in-time read of the gameplay metrics pushed to remote
// storage. It is derived fresh for each sync tick and not retained across
// ticks except implicitly via the remote row.
type Snapshot struct {
	UserID    string
	Coins     int64
	Gems      int64
	Health    int64
	MaxHealth int64
	Zone      int64
	Attack    int64
	Defense   int64
}

// RecordStore is the keyed per-user analytics table consumed by [SyncJob].
// FindByUser returns [ErrNoRow] when no row exists for the user; Update
// returns [ErrNoRow] when asked to update an absent row. Insert overwrites
// silently if a concurrent insert won the race; duplicate or overwritten
// analytics rows are tolerable, user-facing failure is not.
type RecordStore interface {
	FindByUser(ctx context.Context, userID string) (Snapshot, error)
	Update(ctx context.Context, snap Snapshot) error
	Insert(ctx context.Context, snap Snapshot) error
}
