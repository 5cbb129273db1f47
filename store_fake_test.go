package accounts_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	accounts "github.com/goliatone/go-accounts"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// fakeStore is an in-memory RepositoryManager. RunInTx holds a single mutex
// for the duration of the callback and restores a snapshot on error, which
// gives command handlers the same serialization and rollback guarantees the
// real transactions do.
type fakeStore struct {
	mu sync.Mutex

	accounts     map[uuid.UUID]accounts.Account
	activations  map[uuid.UUID]accounts.ActivationToken
	resets       map[uuid.UUID]accounts.PasswordReset
	roles        map[uuid.UUID]accounts.Role
	accountRoles []accounts.AccountRole
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:    map[uuid.UUID]accounts.Account{},
		activations: map[uuid.UUID]accounts.ActivationToken{},
		resets:      map[uuid.UUID]accounts.PasswordReset{},
		roles:       map[uuid.UUID]accounts.Role{},
	}
}

func (s *fakeStore) Validate() error { return nil }
func (s *fakeStore) MustValidate()   {}

func (s *fakeStore) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.snapshot()
	if err := f(ctx, bun.Tx{}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *fakeStore) snapshot() *fakeStore {
	c := newFakeStore()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.activations {
		c.activations[k] = v
	}
	for k, v := range s.resets {
		c.resets[k] = v
	}
	for k, v := range s.roles {
		c.roles[k] = v
	}
	c.accountRoles = append([]accounts.AccountRole{}, s.accountRoles...)
	return c
}

func (s *fakeStore) restore(snapshot *fakeStore) {
	s.accounts = snapshot.accounts
	s.activations = snapshot.activations
	s.resets = snapshot.resets
	s.roles = snapshot.roles
	s.accountRoles = snapshot.accountRoles
}

func (s *fakeStore) Accounts() accounts.Accounts             { return &fakeAccounts{store: s} }
func (s *fakeStore) Activations() accounts.Activations       { return &fakeActivations{store: s} }
func (s *fakeStore) PasswordResets() accounts.PasswordResets { return &fakeResets{store: s} }
func (s *fakeStore) Roles() accounts.Roles                   { return &fakeRoles{store: s} }

// mustSeedAccount inserts an account directly, bypassing handlers
func (s *fakeStore) mustSeedAccount(record accounts.Account) accounts.Account {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.EnsureStatus()
	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
	s.accounts[record.ID] = record
	return record
}

func (s *fakeStore) mustSeedRole(name string) accounts.Role {
	role := accounts.Role{ID: uuid.New(), Name: name}
	s.roles[role.ID] = role
	return role
}

func (s *fakeStore) account(id uuid.UUID) accounts.Account {
	return s.accounts[id]
}

func (s *fakeStore) activationFor(accountID uuid.UUID) (accounts.ActivationToken, bool) {
	for _, t := range s.activations {
		if t.AccountID == accountID {
			return t, true
		}
	}
	return accounts.ActivationToken{}, false
}

func (s *fakeStore) resetFor(accountID uuid.UUID, status string) (accounts.PasswordReset, bool) {
	for _, r := range s.resets {
		if r.AccountID == accountID && r.Status == status {
			return r, true
		}
	}
	return accounts.PasswordReset{}, false
}

func (s *fakeStore) roleIDsFor(accountID uuid.UUID) []uuid.UUID {
	ids := []uuid.UUID{}
	for _, ar := range s.accountRoles {
		if ar.AccountID == accountID {
			ids = append(ids, ar.RoleID)
		}
	}
	return ids
}

type fakeAccounts struct {
	store *fakeStore
}

func (f *fakeAccounts) GetByID(ctx context.Context, id string) (*accounts.Account, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.NewRecordNotFound()
	}
	record, ok := f.store.accounts[uid]
	if !ok || record.DeletedAt != nil {
		return nil, repository.NewRecordNotFound()
	}
	f.attachRoles(&record)
	return &record, nil
}

func (f *fakeAccounts) GetByIdentifier(ctx context.Context, identifier string) (*accounts.Account, error) {
	if uid, err := uuid.Parse(identifier); err == nil {
		if record, ok := f.store.accounts[uid]; ok && record.DeletedAt == nil {
			f.attachRoles(&record)
			return &record, nil
		}
	}
	for _, record := range f.store.accounts {
		if record.Email == identifier && record.DeletedAt == nil {
			f.attachRoles(&record)
			return &record, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeAccounts) attachRoles(record *accounts.Account) {
	record.Roles = nil
	for _, id := range f.store.roleIDsFor(record.ID) {
		if role, ok := f.store.roles[id]; ok {
			r := role
			record.Roles = append(record.Roles, &r)
		}
	}
}

func (f *fakeAccounts) List(ctx context.Context) ([]*accounts.Account, error) {
	out := []*accounts.Account{}
	for _, record := range f.store.accounts {
		if record.DeletedAt != nil {
			continue
		}
		r := record
		f.attachRoles(&r)
		out = append(out, &r)
	}
	return out, nil
}

func (f *fakeAccounts) Create(ctx context.Context, record *accounts.Account) (*accounts.Account, error) {
	return f.CreateTx(ctx, nil, record)
}

func (f *fakeAccounts) CreateTx(ctx context.Context, tx bun.IDB, record *accounts.Account) (*accounts.Account, error) {
	for _, existing := range f.store.accounts {
		if existing.Email == record.Email {
			return nil, errors.New("UNIQUE constraint failed: accounts.email")
		}
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.EnsureStatus()
	now := time.Now()
	record.CreatedAt = &now
	f.store.accounts[record.ID] = *record
	return record, nil
}

func (f *fakeAccounts) UpdateTx(ctx context.Context, tx bun.IDB, record *accounts.Account) (*accounts.Account, error) {
	existing, ok := f.store.accounts[record.ID]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	existing.FirstName = record.FirstName
	existing.LastName = record.LastName
	existing.Phone = record.Phone
	now := time.Now()
	existing.UpdatedAt = &now
	f.store.accounts[record.ID] = existing
	return &existing, nil
}

func (f *fakeAccounts) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	record, ok := f.store.accounts[id]
	if !ok || record.DeletedAt != nil || record.Status != accounts.AccountStatusPending {
		return false, nil
	}
	record.Status = accounts.AccountStatusActive
	f.store.accounts[id] = record
	return true, nil
}

func (f *fakeAccounts) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	record, ok := f.store.accounts[id]
	if !ok {
		return repository.NewRecordNotFound()
	}
	record.PasswordHash = passwordHash
	record.LoginAttempts = 0
	f.store.accounts[id] = record
	return nil
}

func (f *fakeAccounts) UpdateStatus(ctx context.Context, id uuid.UUID, status accounts.AccountStatus) (*accounts.Account, error) {
	record, ok := f.store.accounts[id]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	record.Status = status
	f.store.accounts[id] = record
	return &record, nil
}

func (f *fakeAccounts) SoftDeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	record, ok := f.store.accounts[id]
	if !ok || record.DeletedAt != nil {
		return false, nil
	}
	now := time.Now()
	record.DeletedAt = &now
	record.Status = accounts.AccountStatusDeleted
	f.store.accounts[id] = record
	return true, nil
}

func (f *fakeAccounts) TrackAttemptedLogin(ctx context.Context, account *accounts.Account) error {
	return f.TrackAttemptedLoginTx(ctx, nil, account)
}

func (f *fakeAccounts) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *accounts.Account) error {
	record, ok := f.store.accounts[account.ID]
	if !ok {
		return repository.NewRecordNotFound()
	}
	now := time.Now()
	record.LoginAttempts++
	record.LoginAttemptAt = &now
	f.store.accounts[account.ID] = record
	return nil
}

func (f *fakeAccounts) TrackSuccessfulLogin(ctx context.Context, account *accounts.Account) error {
	return f.TrackSuccessfulLoginTx(ctx, nil, account)
}

func (f *fakeAccounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *accounts.Account) error {
	record, ok := f.store.accounts[account.ID]
	if !ok {
		return repository.NewRecordNotFound()
	}
	now := time.Now()
	record.LoginAttempts = 0
	record.LoginAttemptAt = nil
	record.LoggedInAt = &now
	f.store.accounts[account.ID] = record
	return nil
}

type fakeActivations struct {
	store *fakeStore
}

func (f *fakeActivations) IssueTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) (*accounts.ActivationToken, error) {
	now := time.Now()
	token := accounts.ActivationToken{
		ID:        uuid.New(),
		AccountID: accountID,
		Code:      uuid.NewString(),
		CreatedAt: &now,
	}
	f.store.activations[token.ID] = token
	return &token, nil
}

func (f *fakeActivations) FindUnconsumed(ctx context.Context, accountID uuid.UUID, code string) (*accounts.ActivationToken, error) {
	return f.FindUnconsumedTx(ctx, nil, accountID, code)
}

func (f *fakeActivations) FindUnconsumedTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string) (*accounts.ActivationToken, error) {
	for _, token := range f.store.activations {
		if token.AccountID == accountID && token.Code == code && token.ConsumedAt == nil {
			t := token
			return &t, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeActivations) ConsumeTx(ctx context.Context, tx bun.IDB, tokenID uuid.UUID) (bool, error) {
	token, ok := f.store.activations[tokenID]
	if !ok || token.ConsumedAt != nil {
		return false, nil
	}
	now := time.Now()
	token.ConsumedAt = &now
	f.store.activations[tokenID] = token
	return true, nil
}

type fakeResets struct {
	store *fakeStore
}

func (f *fakeResets) IssueTx(ctx context.Context, tx bun.IDB, account *accounts.Account) (*accounts.PasswordReset, error) {
	for id, reset := range f.store.resets {
		if reset.AccountID == account.ID && reset.Status == accounts.ResetRequestedStatus {
			reset.Status = accounts.ResetSupersededStatus
			f.store.resets[id] = reset
		}
	}
	now := time.Now()
	reset := accounts.PasswordReset{
		ID:        uuid.New(),
		AccountID: account.ID,
		Email:     account.Email,
		Code:      uuid.NewString(),
		Status:    accounts.ResetRequestedStatus,
		CreatedAt: &now,
	}
	f.store.resets[reset.ID] = reset
	return &reset, nil
}

func (f *fakeResets) FindUnconsumed(ctx context.Context, accountID uuid.UUID, code string) (*accounts.PasswordReset, error) {
	return f.FindUnconsumedTx(ctx, nil, accountID, code)
}

func (f *fakeResets) FindUnconsumedTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, code string) (*accounts.PasswordReset, error) {
	for _, reset := range f.store.resets {
		if reset.AccountID == accountID && reset.Code == code && reset.Status == accounts.ResetRequestedStatus {
			r := reset
			return &r, nil
		}
	}
	return nil, repository.NewRecordNotFound()
}

func (f *fakeResets) ConsumeTx(ctx context.Context, tx bun.IDB, resetID uuid.UUID) (bool, error) {
	reset, ok := f.store.resets[resetID]
	if !ok || reset.Status != accounts.ResetRequestedStatus {
		return false, nil
	}
	now := time.Now()
	reset.Status = accounts.ResetChangedStatus
	reset.ResetedAt = &now
	f.store.resets[resetID] = reset
	return true, nil
}

type fakeRoles struct {
	store *fakeStore
}

func (f *fakeRoles) GetByID(ctx context.Context, id string) (*accounts.Role, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.NewRecordNotFound()
	}
	role, ok := f.store.roles[uid]
	if !ok {
		return nil, repository.NewRecordNotFound()
	}
	return &role, nil
}

func (f *fakeRoles) List(ctx context.Context) ([]*accounts.Role, error) {
	out := []*accounts.Role{}
	for _, role := range f.store.roles {
		r := role
		out = append(out, &r)
	}
	return out, nil
}

func (f *fakeRoles) Create(ctx context.Context, record *accounts.Role) (*accounts.Role, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	f.store.roles[record.ID] = *record
	return record, nil
}

func (f *fakeRoles) SyncTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, roleIDs []uuid.UUID) error {
	target := map[uuid.UUID]bool{}
	for _, id := range roleIDs {
		target[id] = true
	}

	kept := []accounts.AccountRole{}
	current := map[uuid.UUID]bool{}
	for _, ar := range f.store.accountRoles {
		if ar.AccountID != accountID {
			kept = append(kept, ar)
			continue
		}
		if target[ar.RoleID] {
			kept = append(kept, ar)
			current[ar.RoleID] = true
		}
	}
	for id := range target {
		if !current[id] {
			kept = append(kept, accounts.AccountRole{AccountID: accountID, RoleID: id})
		}
	}
	f.store.accountRoles = kept
	return nil
}

func (f *fakeRoles) RemoveAllTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID) error {
	kept := []accounts.AccountRole{}
	for _, ar := range f.store.accountRoles {
		if ar.AccountID != accountID {
			kept = append(kept, ar)
		}
	}
	f.store.accountRoles = kept
	return nil
}

func (f *fakeRoles) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*accounts.Role, error) {
	out := []*accounts.Role{}
	for _, id := range f.store.roleIDsFor(accountID) {
		if role, ok := f.store.roles[id]; ok {
			r := role
			out = append(out, &r)
		}
	}
	return out, nil
}
