package attachment

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-service/internal/config"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

func newTestResolver(t *testing.T) (*Resolver, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.AttachmentConfig{
		TokenPrefix:   "upload:",
		MaxPerMessage: 3,
		MaxSizeBytes:  1 << 20,
	}
	return NewResolver(client, cfg), mr
}

func storeUpload(t *testing.T, mr *miniredis.Miniredis, token, storageKey, fileName, sizeBytes string) {
	t.Helper()
	mr.HSet("upload:"+token, "storage_key", storageKey)
	mr.HSet("upload:"+token, "file_name", fileName)
	mr.HSet("upload:"+token, "mime_type", "image/png")
	mr.HSet("upload:"+token, "size_bytes", sizeBytes)
}

func TestResolve(t *testing.T) {
	resolver, mr := newTestResolver(t)
	storeUpload(t, mr, "tok-1", "uploads/2026/receipt.png", "receipt.png", "2048")

	refs, err := resolver.Resolve(context.Background(), []string{"tok-1"})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "uploads/2026/receipt.png", refs[0].StorageKey)
	assert.Equal(t, "receipt.png", refs[0].FileName)
	assert.Equal(t, "image/png", refs[0].MimeType)
	assert.Equal(t, int64(2048), refs[0].SizeBytes)
}

func TestResolveNoTokens(t *testing.T) {
	resolver, _ := newTestResolver(t)

	refs, err := resolver.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestResolveUnknownToken(t *testing.T) {
	resolver, mr := newTestResolver(t)
	storeUpload(t, mr, "tok-1", "uploads/a.png", "a.png", "100")

	// one unknown token fails the whole batch
	_, err := resolver.Resolve(context.Background(), []string{"tok-1", "tok-missing"})
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestResolveTooManyTokens(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.Resolve(context.Background(), []string{"a", "b", "c", "d"})
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestResolveOversizedUpload(t *testing.T) {
	resolver, mr := newTestResolver(t)
	storeUpload(t, mr, "tok-big", "uploads/huge.bin", "huge.bin", "2097152")

	_, err := resolver.Resolve(context.Background(), []string{"tok-big"})
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.True(t, errors.As(err, &domainErr))
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}
