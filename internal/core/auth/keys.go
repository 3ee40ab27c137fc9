package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/solatis/netkeeper/internal/types"
)

// IssuedKey is the result of issuing an API key. Key is shown once.
type IssuedKey struct {
	ID         string
	Name       string
	Key        string
	Capability types.Capability
}

// Issue creates an API key for capability under the newest configured
// secret and stores only its hash.
func Issue(ctx context.Context, queries Queries, secrets map[string][]byte, name string, capability types.Capability) (IssuedKey, error) {
	if strings.TrimSpace(name) == "" {
		return IssuedKey{}, fmt.Errorf("key name must not be empty")
	}
	if !capability.Valid() {
		return IssuedKey{}, fmt.Errorf("unknown user type %d", int(capability))
	}

	secretID, ok := newestSecret(secrets)
	if !ok {
		return IssuedKey{}, fmt.Errorf("no HMAC secrets configured (set NK_HMAC_SECRET environment variable)")
	}

	key, hash, err := GenerateAPIKey(secretID, secrets[secretID])
	if err != nil {
		return IssuedKey{}, err
	}

	id := uuid.Must(uuid.NewV7()).String()
	if _, err := queries.Exec(ctx, "insert-api-key", id, name, hash, int(capability), time.Now().UTC()); err != nil {
		return IssuedKey{}, fmt.Errorf("failed to store API key: %w", err)
	}

	return IssuedKey{ID: id, Name: name, Key: key, Capability: capability}, nil
}

// Revoke marks a key revoked. Revoking twice reports ErrKeyNotFound.
func Revoke(ctx context.Context, queries Queries, id string) error {
	res, err := queries.Exec(ctx, "revoke-api-key", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	if n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// newestSecret picks the highest secret id. Ids are UUIDv7, so that is the
// most recently minted secret.
func newestSecret(secrets map[string][]byte) (string, bool) {
	if len(secrets) == 0 {
		return "", false
	}
	ids := make([]string, 0, len(secrets))
	for id := range secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids[len(ids)-1], true
}
