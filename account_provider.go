package accounts

import (
	"context"

	"github.com/goliatone/go-errors"
)

// LoginFailureReason distinguishes credential failures internally. Callers
// receive a uniform error, the reason only travels through logs and the
// activity sink.
type LoginFailureReason = string

const (
	ReasonUnknownIdentifier LoginFailureReason = "unknown_identifier"
	ReasonPasswordMismatch  LoginFailureReason = "password_mismatch"
	ReasonInactiveAccount   LoginFailureReason = "inactive_account"
	ReasonThrottled         LoginFailureReason = "too_many_attempts"
)

func loginFailureReason(err error) LoginFailureReason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTooManyLoginAttempts):
		return ReasonThrottled
	case errors.Is(err, ErrAccountPending), errors.Is(err, ErrAccountDeleted):
		return ReasonInactiveAccount
	case errors.Is(err, ErrIdentityNotFound):
		return ReasonUnknownIdentifier
	default:
		return ReasonPasswordMismatch
	}
}

// AccountTracker is a store we can use to retrieve accounts
type AccountTracker interface {
	GetByIdentifier(ctx context.Context, identifier string) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// AccountProvider resolves identities from the account store
type AccountProvider struct {
	store     AccountTracker
	Validator func(*Account) error
	logger    Logger
}

// MaxLoginAttempts is the maximum number of attempts an account gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountTracker) *AccountProvider {
	return &AccountProvider{
		store:     store,
		logger:    defLogger{},
		Validator: defaultAccountValidator,
	}
}

func (p *AccountProvider) WithLogger(l Logger) *AccountProvider {
	if l != nil {
		p.logger = l
	}
	return p
}

func (p *AccountProvider) validate(account *Account) error {
	if p.Validator != nil {
		return p.Validator(account)
	}
	return defaultAccountValidator(account)
}

// VerifyIdentity will find the account, compare the password, and return
// the matching identity
func (p AccountProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	account, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if err := p.validate(account); err != nil {
		return nil, err
	}

	if account.LoginAttemptAt != nil {
		expired, err := IsOutsideThresholdPeriod(*account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if expired {
			account.LoginAttempts = 0
		}
	}

	// too many attempts in the window, cool off
	if account.LoginAttempts > MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if err2 := p.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	if err := p.store.TrackSuccessfulLogin(ctx, account); err != nil {
		p.logger.Error("failed to track successful login", "error", err)
	}

	return identityFromAccount(account), nil
}

// FindIdentityByIdentifier resolves an identity without checking credentials
func (p AccountProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	account, err := p.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account")
	}

	return identityFromAccount(account), nil
}

func defaultAccountValidator(account *Account) error {
	if account == nil {
		return ErrIdentityNotFound
	}

	if account.PasswordHash == "" {
		return ErrMismatchedHashAndPassword
	}

	return nil
}

func identityFromAccount(account *Account) authIdentity {
	return authIdentity{
		id:     account.ID.String(),
		email:  account.Email,
		role:   primaryRole(account),
		status: account.Status,
	}
}

func primaryRole(account *Account) string {
	if account == nil || len(account.Roles) == 0 || account.Roles[0] == nil {
		return ""
	}
	return account.Roles[0].Name
}

type authIdentity struct {
	id     string
	email  string
	role   string
	status AccountStatus
}

func (a authIdentity) ID() string            { return a.id }
func (a authIdentity) Email() string         { return a.email }
func (a authIdentity) Role() string          { return a.role }
func (a authIdentity) Status() AccountStatus { return a.status }
