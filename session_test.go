package accounts_test

import (
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionObjectExpired(t *testing.T) {
	session := &accounts.SessionObject{}
	assert.False(t, session.Expired())

	past := time.Now().Add(-time.Minute)
	session.ExpirationDate = &past
	assert.True(t, session.Expired())

	future := time.Now().Add(time.Hour)
	session.ExpirationDate = &future
	assert.False(t, session.Expired())
}

func TestSessionObjectGetAccountUUID(t *testing.T) {
	id := uuid.New()
	session := &accounts.SessionObject{AccountID: id.String()}

	got, err := session.GetAccountUUID()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	session.AccountID = "not-a-uuid"
	_, err = session.GetAccountUUID()
	assert.Error(t, err)
}
