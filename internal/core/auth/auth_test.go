package auth

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/solatis/netkeeper/internal/core/db"
	"github.com/solatis/netkeeper/internal/logger"
	"github.com/solatis/netkeeper/internal/types"
)

const testSecretID = "0123456789abcdef0123456789abcdef"

var testSecrets = map[string][]byte{
	testSecretID: []byte("testsecret1234567890abcdefghijklmnop"),
}

func openQueries(t *testing.T) *db.Queries {
	t.Helper()
	database, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = db.MigrateUp(context.Background(), database)
	require.NoError(t, err)

	queries, err := db.LoadQueries(database)
	require.NoError(t, err)
	return queries
}

func TestParseAPIKey(t *testing.T) {
	valid := FormatAPIKey(testSecretID, strings.Repeat("ab", 32))

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", valid, false},
		{"old prefix", strings.Replace(valid, "nk-", "tk-", 1), true},
		{"wrong version", strings.Replace(valid, "-v1-", "-v2-", 1), true},
		{"short random", FormatAPIKey(testSecretID, "abcd"), true},
		{"short secret id", FormatAPIKey("abcd", strings.Repeat("ab", 32)), true},
		{"uppercase hex", FormatAPIKey(strings.ToUpper(testSecretID), strings.Repeat("ab", 32)), true},
		{"extra segment", valid + "-00", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secretID, random, err := ParseAPIKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKeyFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testSecretID, secretID)
			assert.Len(t, random, 64)
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	key, hash, err := GenerateAPIKey(testSecretID, testSecrets[testSecretID])
	require.NoError(t, err)
	assert.Len(t, key, 102)
	assert.True(t, VerifyHMAC(hash, ComputeHMAC(testSecrets[testSecretID], key)))

	other, _, err := GenerateAPIKey(testSecretID, testSecrets[testSecretID])
	require.NoError(t, err)
	assert.NotEqual(t, key, other)

	_, _, err = GenerateAPIKey("not-a-secret-id", testSecrets[testSecretID])
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	queries := openQueries(t)
	a := NewAuthenticator(testSecrets, queries, logger.NewTestLogger())

	admin, err := Issue(ctx, queries, testSecrets, "ops", types.Admin)
	require.NoError(t, err)
	reader, err := Issue(ctx, queries, testSecrets, "dashboard", types.ReadOnlyUser)
	require.NoError(t, err)

	t.Run("issued key resolves to actor", func(t *testing.T) {
		actor, err := a.Authenticate(ctx, admin.Key)
		require.NoError(t, err)
		assert.Equal(t, types.Actor{ID: admin.ID, Capability: types.Admin}, actor)

		actor, err = a.Authenticate(ctx, reader.Key)
		require.NoError(t, err)
		assert.Equal(t, types.ReadOnlyUser, actor.Capability)
	})

	t.Run("malformed key", func(t *testing.T) {
		_, err := a.Authenticate(ctx, "nk-v1-garbage")
		assert.ErrorIs(t, err, ErrInvalidKeyFormat)
	})

	t.Run("unknown secret id", func(t *testing.T) {
		_, err := a.Authenticate(ctx, FormatAPIKey("fedcba9876543210fedcba9876543210", strings.Repeat("ab", 32)))
		assert.ErrorIs(t, err, ErrUnknownKey)
	})

	t.Run("well-formed but never issued", func(t *testing.T) {
		_, err := a.Authenticate(ctx, FormatAPIKey(testSecretID, strings.Repeat("cd", 32)))
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("revoked key", func(t *testing.T) {
		require.NoError(t, Revoke(ctx, queries, reader.ID))
		_, err := a.Authenticate(ctx, reader.Key)
		assert.ErrorIs(t, err, ErrKeyRevoked)

		assert.ErrorIs(t, Revoke(ctx, queries, reader.ID), ErrKeyNotFound)
	})
}

func TestIssue_Rejects(t *testing.T) {
	ctx := context.Background()
	queries := openQueries(t)

	_, err := Issue(ctx, queries, testSecrets, " ", types.Admin)
	assert.Error(t, err)

	_, err = Issue(ctx, queries, testSecrets, "ops", types.Capability(9))
	assert.Error(t, err)

	_, err = Issue(ctx, queries, map[string][]byte{}, "ops", types.Admin)
	assert.Error(t, err)
}

func TestNewestSecret(t *testing.T) {
	id, ok := newestSecret(map[string][]byte{
		"018f0000000070008000000000000001": nil,
		"019a0000000070008000000000000001": nil,
		"0190000000007000800000000000ffff": nil,
	})
	require.True(t, ok)
	assert.Equal(t, "019a0000000070008000000000000001", id)

	_, ok = newestSecret(nil)
	assert.False(t, ok)
}

// fakeQueries serves one api_keys row and records last_used updates.
type fakeQueries struct {
	row     keyRow
	getErr  error
	updates int
}

type keyRow struct {
	APIKeyID   string           `db:"api_key_id"`
	UserType   types.Capability `db:"user_type"`
	RevokedAt  sql.NullTime     `db:"revoked_at"`
	LastUsedAt sql.NullTime     `db:"last_used_at"`
}

func (f *fakeQueries) Get(_ context.Context, _ string, dest any, _ ...any) error {
	if f.getErr != nil {
		return f.getErr
	}
	// dest is the anonymous struct in Authenticate; copy field by field
	d := dest.(*struct {
		APIKeyID   string           `db:"api_key_id"`
		UserType   types.Capability `db:"user_type"`
		RevokedAt  sql.NullTime     `db:"revoked_at"`
		LastUsedAt sql.NullTime     `db:"last_used_at"`
	})
	*d = f.row
	return nil
}

func (f *fakeQueries) Exec(context.Context, string, ...any) (sql.Result, error) {
	f.updates++
	return nil, nil
}

func TestAuthenticate_LastUsedThrottle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	key, _, err := GenerateAPIKey(testSecretID, testSecrets[testSecretID])
	require.NoError(t, err)

	tests := []struct {
		name        string
		lastUsed    sql.NullTime
		wantUpdates int
	}{
		{"never used", sql.NullTime{}, 1},
		{"used seconds ago", sql.NullTime{Time: now.Add(-10 * time.Second), Valid: true}, 0},
		{"used two minutes ago", sql.NullTime{Time: now.Add(-2 * time.Minute), Valid: true}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQueries{row: keyRow{APIKeyID: "k1", UserType: types.Admin, LastUsedAt: tt.lastUsed}}
			a := NewAuthenticator(testSecrets, q, logger.NewTestLogger())
			a.now = func() time.Time { return now }

			_, err := a.Authenticate(context.Background(), key)
			require.NoError(t, err)
			assert.Equal(t, tt.wantUpdates, q.updates)
		})
	}
}

func TestUnaryInterceptor(t *testing.T) {
	key, _, err := GenerateAPIKey(testSecretID, testSecrets[testSecretID])
	require.NoError(t, err)

	info := &grpc.UnaryServerInfo{FullMethod: "/netkeeper.drule.v1.DRuleService/Get"}

	tests := []struct {
		name     string
		md       metadata.MD
		queries  *fakeQueries
		method   string
		wantCode codes.Code
	}{
		{
			name:     "valid key",
			md:       metadata.Pairs("x-api-key", key),
			queries:  &fakeQueries{row: keyRow{APIKeyID: "k1", UserType: types.Admin}},
			wantCode: codes.OK,
		},
		{
			name:     "missing key",
			md:       metadata.Pairs("other", "x"),
			queries:  &fakeQueries{},
			wantCode: codes.Unauthenticated,
		},
		{
			name:     "revoked key",
			md:       metadata.Pairs("x-api-key", key),
			queries:  &fakeQueries{row: keyRow{APIKeyID: "k1", UserType: types.Admin, RevokedAt: sql.NullTime{Time: time.Now(), Valid: true}}},
			wantCode: codes.PermissionDenied,
		},
		{
			name:     "unknown key",
			md:       metadata.Pairs("x-api-key", key),
			queries:  &fakeQueries{getErr: sql.ErrNoRows},
			wantCode: codes.Unauthenticated,
		},
		{
			name:     "database down",
			md:       metadata.Pairs("x-api-key", key),
			queries:  &fakeQueries{getErr: errors.New("connection refused")},
			wantCode: codes.Unavailable,
		},
		{
			name:     "health check needs no key",
			queries:  &fakeQueries{},
			method:   "/grpc.health.v1.Health/Check",
			wantCode: codes.OK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthenticator(testSecrets, tt.queries, logger.NewTestLogger())

			ctx := context.Background()
			if tt.md != nil {
				ctx = metadata.NewIncomingContext(ctx, tt.md)
			}
			callInfo := info
			if tt.method != "" {
				callInfo = &grpc.UnaryServerInfo{FullMethod: tt.method}
			}

			var seen types.Actor
			handler := func(ctx context.Context, req any) (any, error) {
				seen, _ = ActorFromContext(ctx)
				return "ok", nil
			}

			_, err := a.UnaryInterceptor()(ctx, nil, callInfo, handler)
			assert.Equal(t, tt.wantCode, status.Code(err))
			if tt.wantCode == codes.OK && tt.method == "" {
				assert.Equal(t, "k1", seen.ID)
				assert.Equal(t, types.Admin, seen.Capability)
			}
		})
	}
}
