package accounts

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasswordResets persists time-limited, single-use reset requests
type PasswordResets interface {
	// IssueTx supersedes any outstanding request for the account and creates
	// the new one, keeping at most one live reset code per account.
	IssueTx(ctx context.Context, tx bun.IDB, account *Account) (*PasswordReset, error)

	FindUnconsumed(ctx context.Context, accountID uuid.UUID, code string) (*PasswordReset, error)
	FindUnconsumedTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string) (*PasswordReset, error)

	// ConsumeTx marks the request changed. It reports false when the request
	// was no longer in the requested state, so concurrent completions with
	// the same code resolve to exactly one winner.
	ConsumeTx(ctx context.Context, tx bun.IDB, resetID uuid.UUID) (bool, error)
}

type passwordResetsRepo struct {
	repo repository.Repository[*PasswordReset]
	db   *bun.DB
}

var _ PasswordResets = (*passwordResetsRepo)(nil)

func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	repo := repository.NewRepository[*PasswordReset](db, repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset { return &PasswordReset{} },
		GetID: func(r *PasswordReset) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *PasswordReset, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &passwordResetsRepo{
		repo: repo,
		db:   db,
	}
}

func (p *passwordResetsRepo) IssueTx(ctx context.Context, tx bun.IDB, account *Account) (*PasswordReset, error) {
	// invalidate prior outstanding requests before the new one exists
	_, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("status = ?", ResetSupersededStatus).
		Set("updated_at = ?", time.Now()).
		Where("account_id = ?", account.ID).
		Where("status = ?", ResetRequestedStatus).
		Exec(ctx)

	if err != nil {
		return nil, err
	}

	reset := &PasswordReset{
		ID:        uuid.New(),
		AccountID: account.ID,
		Email:     account.Email,
		Code:      uuid.NewString(),
		Status:    ResetRequestedStatus,
	}

	return p.repo.CreateTx(ctx, tx, reset)
}

func (p *passwordResetsRepo) FindUnconsumed(ctx context.Context, accountID uuid.UUID, code string) (*PasswordReset, error) {
	return p.FindUnconsumedTx(ctx, p.db, accountID, code)
}

func (p *passwordResetsRepo) FindUnconsumedTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string) (*PasswordReset, error) {
	record := &PasswordReset{}

	err := tx.NewSelect().
		Model(record).
		Where("account_id = ?", accountID).
		Where("code = ?", code).
		Where("status = ?", ResetRequestedStatus).
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

func (p *passwordResetsRepo) ConsumeTx(ctx context.Context, tx bun.IDB, resetID uuid.UUID) (bool, error) {
	record := MarkPasswordAsReseted(resetID)

	res, err := tx.NewUpdate().
		Model(record).
		Column("status", "reseted_at").
		Where("id = ?", resetID).
		Where("status = ?", ResetRequestedStatus).
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
