// Package attachment adapts the external file-storage collaborator. The
// upload pipeline stores a record per upload token in Redis; the resolver
// exchanges opaque tokens for immutable attachment references at ticket or
// reply creation time.
package attachment

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/support-service/internal/config"
	"github.com/spec-kit/support-service/internal/domain"
	apperrors "github.com/spec-kit/support-service/pkg/util/errorutil"
)

// Resolver exchanges upload tokens for attachment references.
type Resolver struct {
	client *redis.Client
	cfg    config.AttachmentConfig
}

// NewResolver builds a resolver backed by the given Redis client.
func NewResolver(client *redis.Client, cfg config.AttachmentConfig) *Resolver {
	return &Resolver{client: client, cfg: cfg}
}

// Resolve validates the upload tokens and returns their attachment metadata.
// Unknown or expired tokens fail the whole batch; nothing is partially
// accepted.
func (r *Resolver) Resolve(ctx context.Context, tokens []string) ([]domain.AttachmentReference, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if r.cfg.MaxPerMessage > 0 && len(tokens) > r.cfg.MaxPerMessage {
		return nil, apperrors.NewValidationError("too many attachments", map[string]any{
			"max": r.cfg.MaxPerMessage,
		})
	}

	refs := make([]domain.AttachmentReference, 0, len(tokens))
	for _, token := range tokens {
		record, err := r.client.HGetAll(ctx, r.cfg.TokenPrefix+token).Result()
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		if len(record) == 0 {
			return nil, apperrors.NewValidationError("unknown upload token", map[string]any{
				"token": token,
			})
		}

		sizeBytes, err := strconv.ParseInt(record["size_bytes"], 10, 64)
		if err != nil {
			sizeBytes = 0
		}
		if r.cfg.MaxSizeBytes > 0 && sizeBytes > r.cfg.MaxSizeBytes {
			return nil, apperrors.NewValidationError("attachment too large", map[string]any{
				"token":     token,
				"max_bytes": r.cfg.MaxSizeBytes,
			})
		}

		refs = append(refs, domain.AttachmentReference{
			StorageKey: record["storage_key"],
			FileName:   record["file_name"],
			MimeType:   record["mime_type"],
			SizeBytes:  sizeBytes,
		})
	}
	return refs, nil
}
