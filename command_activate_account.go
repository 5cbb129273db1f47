package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ActivateAccountMessage struct {
	AccountID uuid.UUID `json:"account_id"`
	Code      string    `json:"code"`
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

// ActivateAccountHandler redeems a one-time activation code. The conditional
// consume plus the conditional pending-to-active flip run in one transaction,
// so two concurrent attempts with the same code produce exactly one winner;
// the loser observes the token already consumed and fails.
type ActivateAccountHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

// NewActivateAccountHandler creates a handler with sane defaults.
func NewActivateAccountHandler(repo RepositoryManager) *ActivateAccountHandler {
	return &ActivateAccountHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit activation events.
func (h *ActivateAccountHandler) WithActivitySink(sink ActivitySink) *ActivateAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *ActivateAccountHandler) WithLogger(logger Logger) *ActivateAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account activation")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	account := &Account{}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err = h.repo.Accounts().GetByID(ctx, event.AccountID.String())
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrAccountNotFound.WithMetadata(map[string]any{
					"account_id": event.AccountID.String(),
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve account for activation")
		}

		if account.Status != AccountStatusPending {
			return ErrInvalidOrExpiredToken.WithMetadata(map[string]any{
				"reason": "account not pending",
				"status": account.Status,
			})
		}

		token, err := h.repo.Activations().FindUnconsumedTx(ctx, tx, account.ID, event.Code)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrInvalidOrExpiredToken.WithMetadata(map[string]any{
					"reason": "no matching unconsumed token",
				})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve activation token")
		}

		consumed, err := h.repo.Activations().ConsumeTx(ctx, tx, token.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume activation token")
		}

		if !consumed {
			return ErrInvalidOrExpiredToken.WithMetadata(map[string]any{
				"reason": "token already consumed",
			})
		}

		activated, err := h.repo.Accounts().ActivateTx(ctx, tx, account.ID)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
		}

		if !activated {
			return ErrInvalidOrExpiredToken.WithMetadata(map[string]any{
				"reason": "account no longer pending",
			})
		}

		account.Status = AccountStatusActive
		return nil
	})

	if err != nil {
		h.recordActivity(ctx, event.AccountID, ActivityEventActivationFailure, map[string]any{
			"error": err.Error(),
		})

		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate account")
	}

	h.recordActivity(ctx, account.ID, ActivityEventAccountActivated, map[string]any{
		"email": account.Email,
	})

	return nil
}

func (h *ActivateAccountHandler) recordActivity(ctx context.Context, accountID uuid.UUID, eventType ActivityEventType, metadata map[string]any) {
	event := ActivityEvent{
		EventType: eventType,
		Actor: ActorRef{
			ID:   accountID.String(),
			Type: "account",
		},
		AccountID:  accountID.String(),
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if err := normalizeActivitySink(h.activity).Record(ctx, event); err != nil {
		h.logger.Warn("activity sink error during activation: %v", err)
	}
}
