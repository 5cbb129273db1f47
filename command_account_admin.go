package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CreateAccountMessage struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Phone     string      `json:"phone_number"`
	Password  string      `json:"password"`
	RoleIDs   []uuid.UUID `json:"role_ids"`
	Activated bool        `json:"activated"`
	OnResponse func(account *Account)
}

func (e CreateAccountMessage) Type() string { return "account.admin.create" }

// CreateAccountHandler is the admin-side provisioning path: the account is
// created together with its role set and may skip the activation flow.
type CreateAccountHandler struct {
	repo   RepositoryManager
	logger Logger
}

// NewCreateAccountHandler creates a handler with sane defaults.
func NewCreateAccountHandler(repo RepositoryManager) *CreateAccountHandler {
	return &CreateAccountHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *CreateAccountHandler) WithLogger(logger Logger) *CreateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CreateAccountHandler) Execute(ctx context.Context, event CreateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account creation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateAccountHandler) execute(ctx context.Context, event CreateAccountMessage) error {
	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		hash, err := HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		account.PasswordHash = hash
		account.Email = event.Email
		account.Phone = event.Phone
		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.Status = AccountStatusPending
		if event.Activated {
			account.Status = AccountStatusActive
		}

		if account, err = h.repo.Accounts().CreateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account").
				WithTextCode(TextCodeEmailTaken)
		}

		if err := h.repo.Roles().SyncTx(ctx, tx, account.ID, event.RoleIDs); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to assign roles")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account creation transaction failed")
	}

	if event.OnResponse != nil {
		event.OnResponse(account)
	}

	return nil
}

type UpdateAccountMessage struct {
	AccountID uuid.UUID   `json:"account_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     string      `json:"phone_number"`
	RoleIDs   []uuid.UUID `json:"role_ids"`
}

func (e UpdateAccountMessage) Type() string { return "account.admin.update" }

// UpdateAccountHandler applies admin edits and replaces the role set with
// the submitted target (role-sync semantics: add missing, remove absent).
type UpdateAccountHandler struct {
	repo   RepositoryManager
	logger Logger
}

// NewUpdateAccountHandler creates a handler with sane defaults.
func NewUpdateAccountHandler(repo RepositoryManager) *UpdateAccountHandler {
	return &UpdateAccountHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *UpdateAccountHandler) WithLogger(logger Logger) *UpdateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateAccountHandler) Execute(ctx context.Context, event UpdateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateAccountHandler) execute(ctx context.Context, event UpdateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := h.repo.Accounts().GetByID(ctx, event.AccountID.String())
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrAccountNotFound.WithMetadata(map[string]any{
					"account_id": event.AccountID.String(),
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account for update")
		}

		account.FirstName = event.FirstName
		account.LastName = event.LastName
		account.Phone = event.Phone

		if _, err := h.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
		}

		if err := h.repo.Roles().SyncTx(ctx, tx, account.ID, event.RoleIDs); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sync roles")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account update transaction failed")
	}

	return nil
}

type DeleteAccountMessage struct {
	AccountID uuid.UUID `json:"account_id"`
	Actor     ActorRef
}

func (e DeleteAccountMessage) Type() string { return "account.admin.delete" }

// DeleteAccountHandler soft-deletes an account and removes its role
// associations in the same transaction. The deletion is irreversible.
type DeleteAccountHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewDeleteAccountHandler creates a handler with sane defaults.
func NewDeleteAccountHandler(repo RepositoryManager) *DeleteAccountHandler {
	return &DeleteAccountHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit deletion events.
func (h *DeleteAccountHandler) WithActivitySink(sink ActivitySink) *DeleteAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *DeleteAccountHandler) WithLogger(logger Logger) *DeleteAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *DeleteAccountHandler) Execute(ctx context.Context, event DeleteAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account deletion")
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteAccountHandler) execute(ctx context.Context, event DeleteAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		deleted, err := h.repo.Accounts().SoftDeleteTx(ctx, tx, event.AccountID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete account")
		}

		if !deleted {
			return ErrAccountNotFound.WithMetadata(map[string]any{
				"account_id": event.AccountID.String(),
			})
		}

		if err := h.repo.Roles().RemoveAllTx(ctx, tx, event.AccountID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to remove role associations")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account deletion transaction failed")
	}

	h.recordActivity(ctx, event)

	return nil
}

func (h *DeleteAccountHandler) recordActivity(ctx context.Context, event DeleteAccountMessage) {
	activityEvent := ActivityEvent{
		EventType:  ActivityEventAccountDeleted,
		Actor:      event.Actor,
		AccountID:  event.AccountID.String(),
		FromStatus: AccountStatusActive,
		ToStatus:   AccountStatusDeleted,
		Metadata:   map[string]any{},
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, activityEvent); err != nil {
		h.logger.Warn("activity sink error during account deletion: %v", err)
	}
}
