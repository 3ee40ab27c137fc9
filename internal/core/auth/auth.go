// Package auth provides HMAC-based API key authentication for gRPC services.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/netkeeper/internal/types"
)

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// actorKey is the context key for the authenticated actor.
const actorKey = contextKey("actor")

// healthMethodPrefix is served without a key so probes need no credentials.
const healthMethodPrefix = "/grpc.health.v1.Health/"

// Queries defines the database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	Get(ctx context.Context, name string, dest any, args ...any) error
	Exec(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		logger:  logger.With().Str("component", "auth").Logger(),
		now:     time.Now,
	}
}

// Authenticate validates an API key and returns the actor it belongs to.
// Each failure mode has its own error so the interceptor can map it.
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (types.Actor, error) {
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return types.Actor{}, err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return types.Actor{}, ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// key_hash is unique, so at most one row matches
	var result struct {
		APIKeyID   string           `db:"api_key_id"`
		UserType   types.Capability `db:"user_type"`
		RevokedAt  sql.NullTime     `db:"revoked_at"`
		LastUsedAt sql.NullTime     `db:"last_used_at"`
	}

	err = a.queries.Get(ctx, "get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Actor{}, ErrInvalidKey
	}
	if err != nil {
		return types.Actor{}, fmt.Errorf("%w: %v", ErrDatabase, err)
	}

	if result.RevokedAt.Valid {
		return types.Actor{}, ErrKeyRevoked
	}
	if !result.UserType.Valid() {
		return types.Actor{}, ErrInvalidKey
	}

	// Throttled to one write per minute per key.
	if a.shouldUpdateLastUsed(result.LastUsedAt) {
		if _, err := a.queries.Exec(ctx, "update-last-used", a.now().UTC(), result.APIKeyID); err != nil {
			a.logger.Warn().Err(err).Str("api_key_id", result.APIKeyID).Msg("failed to update last_used_at")
		}
	}

	return types.Actor{ID: result.APIKeyID, Capability: result.UserType}, nil
}

func (a *Authenticator) shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return a.now().Sub(lastUsed.Time) > time.Minute
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthMethodPrefix) {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get("x-api-key")
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		actor, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			a.logger.Debug().Err(err).Str("method", info.FullMethod).Msg("authentication failed")
			return nil, status.Error(authCode(err), err.Error())
		}

		return handler(WithActor(ctx, actor), req)
	}
}

// authCode maps authentication failures to status codes. Missing and
// invalid keys are indistinguishable to the caller; a revoked key confirms
// the key exists.
func authCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return codes.PermissionDenied
	case errors.Is(err, ErrDatabase):
		return codes.Unavailable
	default:
		return codes.Unauthenticated
	}
}

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor types.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the authenticated actor.
func ActorFromContext(ctx context.Context) (types.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(types.Actor)
	return actor, ok
}
