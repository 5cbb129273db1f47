package accounts

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Roles persists permission bundles and their account associations
type Roles interface {
	GetByID(ctx context.Context, id string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Create(ctx context.Context, record *Role) (*Role, error)

	// SyncTx replaces the account's role associations with exactly the
	// target set: roles missing from the target are removed, roles missing
	// from the current set are added. Nothing is merged incrementally.
	SyncTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, roleIDs []uuid.UUID) error

	// RemoveAllTx drops every association for the account, used when an
	// account is deleted.
	RemoveAllTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error

	ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*Role, error)
}

type rolesRepo struct {
	repo repository.Repository[*Role]
	db   *bun.DB
}

var _ Roles = (*rolesRepo)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	repo := repository.NewRepository[*Role](db, repository.ModelHandlers[*Role]{
		NewRecord: func() *Role { return &Role{} },
		GetID: func(r *Role) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Role, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &rolesRepo{
		repo: repo,
		db:   db,
	}
}

func (r *rolesRepo) GetByID(ctx context.Context, id string) (*Role, error) {
	return r.repo.GetByID(ctx, id)
}

func (r *rolesRepo) List(ctx context.Context) ([]*Role, error) {
	records := []*Role{}

	err := r.db.NewSelect().
		Model(&records).
		Order("name ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (r *rolesRepo) Create(ctx context.Context, record *Role) (*Role, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.repo.Create(ctx, record)
}

func (r *rolesRepo) SyncTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, roleIDs []uuid.UUID) error {
	current := []*AccountRole{}

	err := tx.NewSelect().
		Model(&current).
		Where("account_id = ?", accountID).
		Scan(ctx)

	if err != nil {
		return err
	}

	target := make(map[uuid.UUID]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		target[id] = struct{}{}
	}

	existing := make(map[uuid.UUID]struct{}, len(current))
	remove := make([]uuid.UUID, 0)
	for _, assoc := range current {
		existing[assoc.RoleID] = struct{}{}
		if _, keep := target[assoc.RoleID]; !keep {
			remove = append(remove, assoc.RoleID)
		}
	}

	add := make([]*AccountRole, 0)
	for _, id := range roleIDs {
		if _, has := existing[id]; !has {
			add = append(add, &AccountRole{
				AccountID: accountID,
				RoleID:    id,
			})
		}
	}

	if len(remove) > 0 {
		_, err = tx.NewDelete().
			Model((*AccountRole)(nil)).
			Where("account_id = ?", accountID).
			Where("role_id IN (?)", bun.In(remove)).
			Exec(ctx)

		if err != nil {
			return err
		}
	}

	if len(add) > 0 {
		_, err = tx.NewInsert().
			Model(&add).
			Exec(ctx)

		if err != nil {
			return err
		}
	}

	return nil
}

func (r *rolesRepo) RemoveAllTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*AccountRole)(nil)).
		Where("account_id = ?", accountID).
		Exec(ctx)

	return err
}

func (r *rolesRepo) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*Role, error) {
	records := []*Role{}

	err := r.db.NewSelect().
		Model(&records).
		Join("JOIN account_roles AS accrol ON accrol.role_id = rol.id").
		Where("accrol.account_id = ?", accountID).
		Order("rol.name ASC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}
