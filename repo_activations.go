package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Activations persists one-time activation tokens
type Activations interface {
	IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*ActivationToken, error)
	FindUnconsumed(ctx context.Context, accountID uuid.UUID, code string) (*ActivationToken, error)
	FindUnconsumedTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string) (*ActivationToken, error)

	// ConsumeTx marks the token used. It reports false when the token was
	// consumed already, which is how concurrent redeemers lose the race.
	ConsumeTx(ctx context.Context, tx bun.IDB, tokenID uuid.UUID) (bool, error)
}

type activationsRepo struct {
	repo repository.Repository[*ActivationToken]
	db   *bun.DB
}

var _ Activations = (*activationsRepo)(nil)

func NewActivationsRepository(db *bun.DB) Activations {
	repo := repository.NewRepository[*ActivationToken](db, repository.ModelHandlers[*ActivationToken]{
		NewRecord: func() *ActivationToken { return &ActivationToken{} },
		GetID: func(t *ActivationToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *ActivationToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "code"
		},
	})

	return &activationsRepo{
		repo: repo,
		db:   db,
	}
}

func (a *activationsRepo) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*ActivationToken, error) {
	token := &ActivationToken{
		ID:        uuid.New(),
		AccountID: accountID,
		Code:      uuid.NewString(),
	}

	return a.repo.CreateTx(ctx, tx, token)
}

func (a *activationsRepo) FindUnconsumed(ctx context.Context, accountID uuid.UUID, code string) (*ActivationToken, error) {
	return a.FindUnconsumedTx(ctx, a.db, accountID, code)
}

func (a *activationsRepo) FindUnconsumedTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string) (*ActivationToken, error) {
	record := &ActivationToken{}

	err := tx.NewSelect().
		Model(record).
		Where("account_id = ?", accountID).
		Where("code = ?", code).
		Where("consumed_at IS NULL").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *activationsRepo) ConsumeTx(ctx context.Context, tx bun.IDB, tokenID uuid.UUID) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*ActivationToken)(nil)).
		Set("consumed_at = ?", time.Now()).
		Where("id = ?", tokenID).
		Where("consumed_at IS NULL").
		Exec(ctx)

	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}
