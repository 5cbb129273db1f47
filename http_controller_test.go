package accounts_test

import (
	"errors"
	"testing"

	accounts "github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
)

func TestLoginRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload accounts.LoginRequest
		wantErr bool
	}{
		{
			name:    "valid",
			payload: accounts.LoginRequest{Identifier: "ada@example.com", Password: "pw"},
			wantErr: false,
		},
		{
			name:    "missing identifier",
			payload: accounts.LoginRequest{Password: "pw"},
			wantErr: true,
		},
		{
			name:    "identifier not an email",
			payload: accounts.LoginRequest{Identifier: "ada", Password: "pw"},
			wantErr: true,
		},
		{
			name:    "missing password",
			payload: accounts.LoginRequest{Identifier: "ada@example.com"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoginRequestPayloadAccessors(t *testing.T) {
	payload := accounts.LoginRequest{Identifier: "ada@example.com", Password: "pw", RememberMe: true}
	assert.Equal(t, "ada@example.com", payload.GetIdentifier())
	assert.Equal(t, "pw", payload.GetPassword())
	assert.True(t, payload.GetExtendedSession())
}

func validRegistration() accounts.RegistrationCreatePayload {
	return accounts.RegistrationCreatePayload{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           "ada@example.com",
		Phone:           "+1 202 456 1414",
		Password:        "super secret password",
		ConfirmPassword: "super secret password",
	}
}

func TestRegistrationCreatePayloadValidate(t *testing.T) {
	assert.NoError(t, validRegistration().Validate())

	mutations := []struct {
		name   string
		mutate func(*accounts.RegistrationCreatePayload)
	}{
		{"missing first name", func(p *accounts.RegistrationCreatePayload) { p.FirstName = "" }},
		{"missing last name", func(p *accounts.RegistrationCreatePayload) { p.LastName = "" }},
		{"bad email", func(p *accounts.RegistrationCreatePayload) { p.Email = "nope" }},
		{"bad phone", func(p *accounts.RegistrationCreatePayload) { p.Phone = "12" }},
		{"short password", func(p *accounts.RegistrationCreatePayload) {
			p.Password = "short"
			p.ConfirmPassword = "short"
		}},
		{"mismatched confirmation", func(p *accounts.RegistrationCreatePayload) { p.ConfirmPassword = "different password" }},
	}

	for _, tt := range mutations {
		t.Run(tt.name, func(t *testing.T) {
			payload := validRegistration()
			tt.mutate(&payload)
			assert.Error(t, payload.Validate())
		})
	}
}

func TestRegistrationCreatePayloadPhoneOptional(t *testing.T) {
	payload := validRegistration()
	payload.Phone = ""
	assert.NoError(t, payload.Validate())
}

func TestPasswordResetRequestPayloadValidate(t *testing.T) {
	payload := accounts.PasswordResetRequestPayload{
		Email: "ada@example.com",
		Stage: accounts.ResetInit,
	}
	assert.NoError(t, payload.Validate())

	payload.Stage = "bogus"
	assert.Error(t, payload.Validate())

	payload.Stage = accounts.ResetInit
	payload.Email = "nope"
	assert.Error(t, payload.Validate())
}

func TestPasswordResetVerifyPayloadValidate(t *testing.T) {
	payload := accounts.PasswordResetVerifyPayload{
		Stage:           accounts.ChangingPassword,
		Password:        "brand new password",
		ConfirmPassword: "brand new password",
	}
	assert.NoError(t, payload.Validate())

	payload.ConfirmPassword = "something else entirely"
	assert.Error(t, payload.Validate())

	payload.ConfirmPassword = payload.Password
	payload.Stage = accounts.ResetInit
	assert.Error(t, payload.Validate())
}

func TestValidateStringEquals(t *testing.T) {
	rule := accounts.ValidateStringEquals("expected")
	assert.NoError(t, rule("expected"))
	assert.Error(t, rule("different"))
	assert.Error(t, rule(42))
}

func TestValidatePhoneNumber(t *testing.T) {
	rule := accounts.ValidatePhoneNumber("US")
	assert.NoError(t, rule(""))
	assert.NoError(t, rule("+1 202 456 1414"))
	assert.Error(t, rule("12"))
	assert.Error(t, rule("not a phone"))
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, accounts.FormatValidationErrorToMap(nil))

	payload := accounts.LoginRequest{Identifier: "nope"}
	out := accounts.FormatValidationErrorToMap(payload.Validate())
	assert.Contains(t, out, "identifier")
	assert.Contains(t, out, "password")

	out = accounts.FormatValidationErrorToMap(errors.New("boom"))
	assert.Equal(t, "boom", out["error"])
}
