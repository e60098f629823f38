package objects

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prepsphere/server/internal/domain/files"
	"github.com/stretchr/testify/require"
)

func TestNewS3Store_RequiresCredentials(t *testing.T) {
	_, err := NewS3Store(S3Config{AccessKeyID: "a", SecretAccessKey: "b", Endpoint: "https://r2.example"})
	require.ErrorIs(t, err, files.ErrStorageNotConfigured)
}

func TestS3Store_URL(t *testing.T) {
	store, err := NewS3Store(S3Config{
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://acct.r2.cloudflarestorage.com/",
		Bucket:          "resumes",
	})
	require.NoError(t, err)
	require.Equal(t, "https://acct.r2.cloudflarestorage.com/resumes/7/a.pdf", store.URL("7/a.pdf"))

	store.publicBaseURL = "https://files.example"
	require.Equal(t, "https://files.example/7/a.pdf", store.URL("7/a.pdf"))
}

func TestS3Store_PresignGetIsLocalOperation(t *testing.T) {
	store, err := NewS3Store(S3Config{
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Endpoint:        "https://acct.r2.cloudflarestorage.com",
		Bucket:          "resumes",
	})
	require.NoError(t, err)

	url, err := store.PresignGet(context.Background(), "7/a.pdf", 10*time.Minute)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://acct.r2.cloudflarestorage.com/resumes/7/a.pdf?"))
	require.Contains(t, url, "X-Amz-Expires=600")
	require.Contains(t, url, "X-Amz-Signature=")
}
