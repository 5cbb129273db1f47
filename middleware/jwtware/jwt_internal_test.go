package jwtware

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetExtractorsParsesLookupString(t *testing.T) {
	extractors := GetExtractors("header:Authorization,query:auth_token,param:token,cookie:jwt")
	require.Len(t, extractors, 4)

	extractors = GetExtractors(" header : Authorization , cookie : jwt ")
	require.Len(t, extractors, 2)

	extractors = GetExtractors("bogus:thing")
	require.Empty(t, extractors)
}

func TestGetDefaultConfigDefaults(t *testing.T) {
	cfg := GetDefaultConfig(Config{TokenValidator: stubOKValidator{}})

	require.Equal(t, "session", cfg.ContextKey)
	require.Equal(t, defaultTokenLookup, cfg.TokenLookup)
	require.Equal(t, "Bearer", cfg.AuthScheme)
	require.NotNil(t, cfg.SuccessHandler)
	require.NotNil(t, cfg.ErrorHandler)
}

type stubOKValidator struct{}

func (stubOKValidator) Validate(string) (AuthClaims, error) { return nil, nil }
