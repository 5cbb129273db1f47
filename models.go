package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountStatus is the lifecycle status of an account
type AccountStatus = string

const (
	// AccountStatusPending is the status between registration and activation
	AccountStatusPending AccountStatus = "pending"
	// AccountStatusActive is the status of an activated account
	AccountStatusActive AccountStatus = "active"
	// AccountStatusDeleted is the terminal status set by admin deletion
	AccountStatusDeleted AccountStatus = "deleted"
)

// Account is the identity record
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Status         AccountStatus `bun:"status,notnull" json:"status,omitempty"`
	FirstName      string        `bun:"first_name" json:"first_name,omitempty"`
	LastName       string        `bun:"last_name" json:"last_name,omitempty"`
	Email          string        `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone          string        `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash   string        `bun:"password_hash" json:"-"`
	LoginAttempts  int           `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt *time.Time    `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt     *time.Time    `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	Roles          []*Role       `bun:"m2m:account_roles,join:Account=Role" json:"roles,omitempty"`
	CreatedAt      *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt      *time.Time    `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// EnsureStatus defaults a blank status to pending
func (a *Account) EnsureStatus() {
	if a.Status == "" {
		a.Status = AccountStatusPending
	}
}

// IsActive reports whether the account may authenticate
func (a *Account) IsActive() bool {
	return a != nil && a.Status == AccountStatusActive && a.DeletedAt == nil
}

// FullName joins the display fields
func (a *Account) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(a.FirstName) + " " + strings.TrimSpace(a.LastName))
}

// RoleIDs returns the ids of the loaded role associations
func (a *Account) RoleIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.Roles))
	for _, r := range a.Roles {
		if r != nil {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// ActivationToken is the one-time code that moves an account from pending to
// active. It is only redeemable while the owning account remains pending.
type ActivationToken struct {
	bun.BaseModel `bun:"table:activation_tokens,alias:actk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Code          string     `bun:"code,notnull" json:"code,omitempty"`
	ConsumedAt    *time.Time `bun:"consumed_at,nullzero" json:"consumed_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Consumed reports whether the token was already redeemed
func (t *ActivationToken) Consumed() bool {
	return t != nil && t.ConsumedAt != nil
}

// PasswordResetStep names the stage of the interactive reset flow
type PasswordResetStep = string

const (
	// ResetInit is the initial step
	ResetInit PasswordResetStep = "show-reset"
	// ResetEmailSent notification sent
	ResetEmailSent PasswordResetStep = "email-sent"
	// ChangingPassword user will change password
	ChangingPassword PasswordResetStep = "change-password"
	// ChangeFinalized processing change
	ChangeFinalized PasswordResetStep = "password-changed"
	// ResetUnknown the reset request could not be verified
	ResetUnknown PasswordResetStep = "unknown"
)

const (
	// ResetRequestedStatus marks the single live reset request per account
	ResetRequestedStatus = "requested"
	// ResetSupersededStatus marks requests invalidated by a newer one
	ResetSupersededStatus = "superseded"
	// ResetChangedStatus marks requests consumed by a password change
	ResetChangedStatus = "changed"
)

// PasswordReset is a time-limited, single-use authorization to change the
// password of an account without a prior session.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull,type:uuid" json:"account_id,omitempty"`
	Account       *Account   `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Code          string     `bun:"code,notnull" json:"code,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Live reports whether the request is still redeemable, TTL aside
func (r *PasswordReset) Live() bool {
	return r != nil && r.Status == ResetRequestedStatus
}

// MarkPasswordAsReseted builds the update record that consumes a reset
func MarkPasswordAsReseted(id uuid.UUID) *PasswordReset {
	now := time.Now()
	return &PasswordReset{
		ID:        id,
		Status:    ResetChangedStatus,
		ResetedAt: &now,
	}
}

// Role is a named permission bundle assigned to accounts
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:rol"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	Description   string     `bun:"description" json:"description,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// AccountRole is the join row between accounts and roles
type AccountRole struct {
	bun.BaseModel `bun:"table:account_roles,alias:accrol"`
	AccountID     uuid.UUID `bun:"account_id,pk,type:uuid" json:"account_id,omitempty"`
	Account       *Account  `bun:"rel:belongs-to,join:account_id=id" json:"account,omitempty"`
	RoleID        uuid.UUID `bun:"role_id,pk,type:uuid" json:"role_id,omitempty"`
	Role          *Role     `bun:"rel:belongs-to,join:role_id=id" json:"role,omitempty"`
}
