package accounts_test

import (
	"context"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exercises the full credential lifecycle against the in-memory store:
// registration, activation, login, password recovery, login again.
func TestAccountLifecycle(t *testing.T) {
	store := newFakeStore()
	notifier := newRecordingNotifier()
	sink := &recordingSink{}

	provider := accounts.NewAccountProvider(store.Accounts())
	auther := accounts.NewAuthenticator(provider, testConfig{}).WithActivitySink(sink)

	// register
	var registered *accounts.RegisterAccountResponse
	err := accounts.NewRegisterAccountHandler(store).
		WithNotifier(notifier).
		WithActivitySink(sink).
		Execute(context.Background(), accounts.RegisterAccountMessage{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Password:  "initial password 1",
			OnResponse: func(r *accounts.RegisterAccountResponse) {
				registered = r
			},
		})
	require.NoError(t, err)
	account := registered.Account

	// login before activation is refused
	_, err = auther.Login(context.Background(), "ada@example.com", "initial password 1")
	assert.ErrorIs(t, err, accounts.ErrAccountPending)

	// activate with the emailed code
	code := waitForCode(t, notifier.activations)
	err = accounts.NewActivateAccountHandler(store).
		WithActivitySink(sink).
		Execute(context.Background(), accounts.ActivateAccountMessage{
			AccountID: account.ID,
			Code:      code,
		})
	require.NoError(t, err)

	// login now succeeds and the session carries the account
	token, err := auther.Login(context.Background(), "ada@example.com", "initial password 1")
	require.NoError(t, err)

	session, err := auther.SessionFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, account.ID.String(), session.GetAccountID())

	identity, err := auther.IdentityFromSession(context.Background(), session)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", identity.Email())

	// recover the password
	err = accounts.NewInitializePasswordResetHandler(store).
		WithNotifier(notifier).
		WithActivitySink(sink).
		Execute(context.Background(), accounts.InitializePasswordResetMessage{
			Email: "ada@example.com",
		})
	require.NoError(t, err)

	resetCode := waitForCode(t, notifier.resets)
	err = accounts.NewFinalizePasswordResetHandler(store).
		WithActivitySink(sink).
		Execute(context.Background(), accounts.FinalizePasswordResetMessage{
			AccountID: account.ID,
			Code:      resetCode,
			Password:  "replacement password 2",
		})
	require.NoError(t, err)

	// the old password is gone, the new one works
	_, err = auther.Login(context.Background(), "ada@example.com", "initial password 1")
	assert.ErrorIs(t, err, accounts.ErrMismatchedHashAndPassword)

	_, err = auther.Login(context.Background(), "ada@example.com", "replacement password 2")
	require.NoError(t, err)

	// every stage left its trace in the activity feed
	for _, eventType := range []accounts.ActivityEventType{
		accounts.ActivityEventAccountRegistered,
		accounts.ActivityEventAccountActivated,
		accounts.ActivityEventPasswordResetRequest,
		accounts.ActivityEventPasswordResetSuccess,
		accounts.ActivityEventLoginSuccess,
	} {
		assert.NotEmpty(t, sink.ByType(eventType), "missing %s event", eventType)
	}
	assert.NotEmpty(t, sink.ByType(accounts.ActivityEventLoginFailure))
}
