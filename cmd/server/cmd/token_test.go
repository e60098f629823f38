package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/prepsphere/server/internal/auth"
	"github.com/stretchr/testify/require"
)

func TestTokenCommand(t *testing.T) {
	output, err := runRoot(t, "token", "--user-id", "42", "--role", "TPO", "--secret", "s3cret", "--issuer", "prepsphere", "--email", "tpo@college.edu")
	require.NoError(t, err)

	manager := auth.NewJWTManager("s3cret", time.Hour, "prepsphere")
	claims, err := manager.Validate(strings.TrimSpace(output))
	require.NoError(t, err)

	id, ok := claims.UserID()
	require.True(t, ok)
	require.Equal(t, int64(42), id)
	require.Equal(t, "tpo", claims.Role)
	require.Equal(t, "tpo@college.edu", claims.Email)
}

func TestTokenCommand_RequiresUserID(t *testing.T) {
	_, err := runRoot(t, "token", "--secret", "s3cret")
	require.Error(t, err)
	require.Contains(t, err.Error(), "user-id")
}

func TestGenerateToken_Errors(t *testing.T) {
	base := tokenOptions{userID: 1, role: "student", secret: "s3cret", issuer: "prepsphere", expiry: time.Hour}

	tests := []struct {
		name   string
		mutate func(*tokenOptions)
		want   string
	}{
		{"no secret", func(o *tokenOptions) { o.secret = "" }, "JWT_SECRET"},
		{"zero user", func(o *tokenOptions) { o.userID = 0 }, "--user-id"},
		{"unknown role", func(o *tokenOptions) { o.role = "dean" }, `unknown role "dean"`},
		{"negative expiry", func(o *tokenOptions) { o.expiry = -time.Minute }, "--expiry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := base
			tt.mutate(&opts)
			_, err := generateToken(opts)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestGenerateToken_WrongSecretFails(t *testing.T) {
	token, err := generateToken(tokenOptions{userID: 7, role: "admin", secret: "one", issuer: "prepsphere", expiry: time.Hour})
	require.NoError(t, err)

	_, err = auth.NewJWTManager("two", time.Hour, "prepsphere").Validate(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}
