package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	verify func(ctx context.Context, identifier, password string) (accounts.Identity, error)
	find   func(ctx context.Context, identifier string) (accounts.Identity, error)
}

func (f fakeProvider) VerifyIdentity(ctx context.Context, identifier, password string) (accounts.Identity, error) {
	return f.verify(ctx, identifier, password)
}

func (f fakeProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (accounts.Identity, error) {
	return f.find(ctx, identifier)
}

func activeIdentity() testIdentity {
	return testIdentity{
		id:     "c0b91f00-7a20-4f57-9708-905b7be9a1ce",
		email:  "ada@example.com",
		role:   "member",
		status: accounts.AccountStatusActive,
	}
}

func TestLogin(t *testing.T) {
	sink := &recordingSink{}
	provider := fakeProvider{
		verify: func(ctx context.Context, identifier, password string) (accounts.Identity, error) {
			return activeIdentity(), nil
		},
	}

	auther := accounts.NewAuthenticator(provider, testConfig{}).WithActivitySink(sink)

	token, err := auther.Login(context.Background(), "ada@example.com", "super secret password")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	session, err := auther.SessionFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "c0b91f00-7a20-4f57-9708-905b7be9a1ce", session.GetAccountID())

	obj, ok := session.(*accounts.SessionObject)
	require.True(t, ok)
	assert.False(t, obj.Expired())

	events := sink.ByType(accounts.ActivityEventLoginSuccess)
	require.Len(t, events, 1)
	assert.Equal(t, "c0b91f00-7a20-4f57-9708-905b7be9a1ce", events[0].AccountID)
	assert.Equal(t, false, events[0].Metadata["extended"])
}

func TestLoginExtended(t *testing.T) {
	provider := fakeProvider{
		verify: func(ctx context.Context, identifier, password string) (accounts.Identity, error) {
			return activeIdentity(), nil
		},
	}

	auther := accounts.NewAuthenticator(provider, testConfig{tokenExpiration: 1, extendedDuration: 48})

	short, err := auther.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)
	long, err := auther.LoginExtended(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	shortSession, err := auther.SessionFromToken(short)
	require.NoError(t, err)
	longSession, err := auther.SessionFromToken(long)
	require.NoError(t, err)

	shortObj := shortSession.(*accounts.SessionObject)
	longObj := longSession.(*accounts.SessionObject)
	require.NotNil(t, shortObj.ExpirationDate)
	require.NotNil(t, longObj.ExpirationDate)
	assert.True(t, longObj.ExpirationDate.After(*shortObj.ExpirationDate))
}

func TestLoginFailureReasons(t *testing.T) {
	tests := []struct {
		name       string
		verifyErr  error
		identity   accounts.Identity
		wantErr    error
		wantReason accounts.LoginFailureReason
	}{
		{
			name:       "unknown identifier",
			verifyErr:  accounts.ErrIdentityNotFound,
			wantErr:    accounts.ErrIdentityNotFound,
			wantReason: accounts.ReasonUnknownIdentifier,
		},
		{
			name:       "password mismatch",
			verifyErr:  accounts.ErrMismatchedHashAndPassword,
			wantErr:    accounts.ErrMismatchedHashAndPassword,
			wantReason: accounts.ReasonPasswordMismatch,
		},
		{
			name:       "throttled",
			verifyErr:  accounts.ErrTooManyLoginAttempts,
			wantErr:    accounts.ErrTooManyLoginAttempts,
			wantReason: accounts.ReasonThrottled,
		},
		{
			name:       "pending account",
			identity:   testIdentity{id: "abc", status: accounts.AccountStatusPending},
			wantErr:    accounts.ErrAccountPending,
			wantReason: accounts.ReasonInactiveAccount,
		},
		{
			name:       "deleted account",
			identity:   testIdentity{id: "abc", status: accounts.AccountStatusDeleted},
			wantErr:    accounts.ErrAccountDeleted,
			wantReason: accounts.ReasonInactiveAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			provider := fakeProvider{
				verify: func(ctx context.Context, identifier, password string) (accounts.Identity, error) {
					if tt.verifyErr != nil {
						return nil, tt.verifyErr
					}
					return tt.identity, nil
				},
			}

			auther := accounts.NewAuthenticator(provider, testConfig{}).WithActivitySink(sink)

			_, err := auther.Login(context.Background(), "ada@example.com", "pw")
			assert.ErrorIs(t, err, tt.wantErr)

			events := sink.ByType(accounts.ActivityEventLoginFailure)
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantReason, events[0].Metadata["reason"])
		})
	}
}

func TestSessionFromTokenRejectsForgedToken(t *testing.T) {
	provider := fakeProvider{
		verify: func(ctx context.Context, identifier, password string) (accounts.Identity, error) {
			return activeIdentity(), nil
		},
	}

	auther := accounts.NewAuthenticator(provider, testConfig{})
	forger := accounts.NewAuthenticator(provider, testConfig{signingKey: "attacker-key"})

	forged, err := forger.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	_, err = auther.SessionFromToken(forged)
	assert.Error(t, err)
}

func TestIdentityFromSession(t *testing.T) {
	identity := activeIdentity()
	provider := fakeProvider{
		verify: func(ctx context.Context, identifier, password string) (accounts.Identity, error) {
			return identity, nil
		},
		find: func(ctx context.Context, identifier string) (accounts.Identity, error) {
			assert.Equal(t, identity.id, identifier)
			return identity, nil
		},
	}

	auther := accounts.NewAuthenticator(provider, testConfig{})

	token, err := auther.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	session, err := auther.SessionFromToken(token)
	require.NoError(t, err)

	got, err := auther.IdentityFromSession(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, identity.email, got.Email())
}

func TestSessionCarriesRole(t *testing.T) {
	provider := fakeProvider{
		verify: func(ctx context.Context, identifier, password string) (accounts.Identity, error) {
			return testIdentity{id: "abc", role: "admin", status: accounts.AccountStatusActive}, nil
		},
	}

	auther := accounts.NewAuthenticator(provider, testConfig{})

	token, err := auther.Login(context.Background(), "ada@example.com", "pw")
	require.NoError(t, err)

	session, err := auther.SessionFromToken(token)
	require.NoError(t, err)

	data := session.GetData()
	require.NotNil(t, data)
	assert.Equal(t, "admin", data["role"])
}
