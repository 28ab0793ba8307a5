package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/folio/backend/internal/model"
)

const dedupeKeyPrefix = "contact:dedupe:"

// DedupeContactRepository rejects a Create whose (email, subject, message)
// was already accepted within window. It claims a fingerprint key with SET NX
// before delegating, so concurrent identical submissions race on Redis rather
// than on the database. Redis errors fail open: the write proceeds and the
// database unique index remains the backstop.
type DedupeContactRepository struct {
	ContactRepository
	client redis.Cmdable
	window time.Duration
}

// NewDedupeContactRepository wraps next with a Redis-backed duplicate guard.
func NewDedupeContactRepository(next ContactRepository, client redis.Cmdable, window time.Duration) *DedupeContactRepository {
	return &DedupeContactRepository{ContactRepository: next, client: client, window: window}
}

func (r *DedupeContactRepository) Create(ctx context.Context, c *model.Contact) error {
	key := dedupeKeyPrefix + Fingerprint(c)

	claimed, err := r.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), r.window).Result()
	if err != nil {
		slog.Warn("dedupe check failed, continuing without it", "error", err)
		return r.ContactRepository.Create(ctx, c)
	}
	if !claimed {
		return ErrDuplicate
	}

	if err := r.ContactRepository.Create(ctx, c); err != nil {
		// Release the claim so a retry after a transient failure is not rejected.
		if delErr := r.client.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			slog.Warn("release dedupe key failed", "error", delErr)
		}
		return err
	}
	return nil
}

// Fingerprint identifies a submission by its normalized content.
func Fingerprint(c *model.Contact) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(c.Email)))
	h.Write([]byte{0})
	h.Write([]byte(c.Subject))
	h.Write([]byte{0})
	h.Write([]byte(c.Message))
	return hex.EncodeToString(h.Sum(nil))
}
