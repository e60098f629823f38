package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJWTGenerateValidate(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "prepsphere")
	token, err := manager.Generate(42, RoleTPO, "tpo@college.edu")
	require.NoError(t, err)

	claims, err := manager.Validate(token)
	require.NoError(t, err)
	require.Equal(t, "tpo", claims.Role)
	require.Equal(t, "tpo@college.edu", claims.Email)

	id, ok := claims.UserID()
	require.True(t, ok)
	require.Equal(t, int64(42), id)
}

func TestJWTGenerateInvalid(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "prepsphere")
	_, err := manager.Generate(0, RoleAdmin, "")
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestJWTValidateMissing(t *testing.T) {
	manager := NewJWTManager("secret", time.Hour, "prepsphere")
	_, err := manager.Validate("")
	require.True(t, errors.Is(err, ErrMissingToken))
}

func TestJWTValidateWrongSecretOrIssuer(t *testing.T) {
	issuer := NewJWTManager("secret", time.Hour, "prepsphere")
	token, err := issuer.Generate(1, RoleAdmin, "")
	require.NoError(t, err)

	_, err = NewJWTManager("other", time.Hour, "prepsphere").Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTManager("secret", time.Hour, "elsewhere").Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTValidateExpired(t *testing.T) {
	manager := NewJWTManager("secret", -time.Minute, "prepsphere")
	token, err := manager.Generate(1, RoleStudent, "")
	require.NoError(t, err)

	_, err = manager.Validate(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromHeader(t *testing.T) {
	_, err := TokenFromHeader("nope")
	require.ErrorIs(t, err, ErrMissingToken)

	token, err := TokenFromHeader("Bearer abc.def")
	require.NoError(t, err)
	require.Equal(t, "abc.def", token)
}

func TestRoles(t *testing.T) {
	require.Equal(t, RoleStudent, NormalizeRole("STUDENT"))
	require.Equal(t, RoleTPO, NormalizeRole(" Tpo "))
	require.Equal(t, RoleStudent, NormalizeRole("recruiter"))

	_, ok := ParseRole("recruiter")
	require.False(t, ok)

	require.True(t, IsStaff("admin"))
	require.True(t, IsStaff("TPO"))
	require.False(t, IsStaff("student"))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"type":"user.created"}`)
	sig := SignWebhookPayload(payload, "whsec")

	require.NoError(t, VerifyWebhookSignature(payload, sig, "whsec"))
	require.NoError(t, VerifyWebhookSignature(payload, "v1,"+sig, "whsec"))
	require.NoError(t, VerifyWebhookSignature(payload, "", ""))
	require.ErrorIs(t, VerifyWebhookSignature(payload, "deadbeef", "whsec"), ErrInvalidSignature)
	require.ErrorIs(t, VerifyWebhookSignature(payload, "", "whsec"), ErrInvalidSignature)
}
