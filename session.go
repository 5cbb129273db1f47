package accounts

import (
	"time"

	"github.com/google/uuid"
)

var _ Session = &SessionObject{}

// SessionObject is the concrete session derived from validated token claims
type SessionObject struct {
	AccountID      string         `json:"account_id,omitempty"`
	Audience       []string       `json:"audience,omitempty"`
	Issuer         string         `json:"issuer,omitempty"`
	IssuedAt       *time.Time     `json:"issued_at,omitempty"`
	ExpirationDate *time.Time     `json:"expiration_date,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

func (s *SessionObject) GetAccountID() string {
	return s.AccountID
}

func (s *SessionObject) GetAccountUUID() (uuid.UUID, error) {
	return uuid.Parse(s.AccountID)
}

func (s *SessionObject) GetAudience() []string {
	return s.Audience
}

func (s *SessionObject) GetIssuer() string {
	return s.Issuer
}

func (s *SessionObject) GetIssuedAt() *time.Time {
	return s.IssuedAt
}

func (s *SessionObject) GetData() map[string]any {
	return s.Data
}

// Expired reports whether the session's expiration date has passed
func (s *SessionObject) Expired() bool {
	if s.ExpirationDate == nil {
		return false
	}
	return s.ExpirationDate.Before(time.Now())
}

func sessionFromAuthClaims(claims AuthClaims) (*SessionObject, error) {
	if claims == nil {
		return nil, ErrUnableToMapClaims
	}

	session := &SessionObject{
		AccountID: claims.AccountID(),
		Data:      map[string]any{},
	}

	if jc, ok := claims.(*JWTClaims); ok {
		session.Issuer = jc.RegisteredClaims.Issuer
		session.Audience = jc.RegisteredClaims.Audience

		if jc.RegisteredClaims.IssuedAt != nil {
			iat := jc.RegisteredClaims.IssuedAt.Time
			session.IssuedAt = &iat
		}

		if jc.ExpiresAt != nil {
			exp := jc.ExpiresAt.Time
			session.ExpirationDate = &exp
		}

		if jc.AccountRole != "" {
			session.Data["role"] = jc.AccountRole
		}

		for k, v := range jc.Metadata {
			session.Data[k] = v
		}
	}

	if session.AccountID == "" {
		return nil, ErrUnableToMapClaims
	}

	return session, nil
}
