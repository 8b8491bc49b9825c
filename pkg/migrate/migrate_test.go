package migrate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyshift/internal/stores"
	"github.com/systmms/keyshift/pkg/migrate"
	"github.com/systmms/keyshift/pkg/secret"
)

func TestContextDropsNoopPrevious(t *testing.T) {
	t.Parallel()

	active := activeSecret()
	same := active

	mctx := migrate.NewContext(active, &same)
	_, ok := mctx.Previous()
	assert.False(t, ok, "previous equal to active is a no-op and must be dropped")
	assert.False(t, mctx.Eligible())
}

func TestContextEligibility(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		active   secret.Secret
		previous *secret.Secret
		want     bool
	}{
		{
			name:     "previous_and_secure_active",
			active:   activeSecret(),
			previous: previousSecret(),
			want:     true,
		},
		{
			name:     "no_previous",
			active:   activeSecret(),
			previous: nil,
			want:     false,
		},
		{
			name:     "insecure_active",
			active:   secret.Secret{Value: "weak", Origin: secret.OriginEnvironment},
			previous: previousSecret(),
			want:     false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mctx := migrate.NewContext(tt.active, tt.previous)
			assert.Equal(t, tt.want, mctx.Eligible())
		})
	}
}

func TestMigrationStoreGetDelegates(t *testing.T) {
	t.Parallel()

	inner := stores.NewMemoryStore()
	ctx := context.Background()
	rec := migrate.Record{"authenticatedPrincipal": "user-1"}
	require.NoError(t, inner.Set(ctx, "sid-1", rec, time.Minute))

	ms := migrate.NewMigrationStore(inner, migrate.NewContext(activeSecret(), previousSecret()))

	got, err := ms.Get(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got["authenticatedPrincipal"])
}

func TestMigrationStoreGetMissingWithoutPrevious(t *testing.T) {
	t.Parallel()

	ms := migrate.NewMigrationStore(stores.NewMemoryStore(), migrate.NewContext(activeSecret(), nil))

	_, err := ms.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)
}

func TestMigrationStoreFallbackCollapsesToNotFound(t *testing.T) {
	t.Parallel()

	// Previous secret configured, but without a codec the wrapper cannot
	// re-verify signatures; the honest contract is a forced re-login.
	ms := migrate.NewMigrationStore(stores.NewMemoryStore(), migrate.NewContext(activeSecret(), previousSecret()))

	_, err := ms.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)
}

func TestMigrationStoreForwardsWrites(t *testing.T) {
	t.Parallel()

	inner := stores.NewMemoryStore()
	ms := migrate.NewMigrationStore(inner, migrate.NewContext(activeSecret(), previousSecret()))
	ctx := context.Background()

	require.NoError(t, ms.Set(ctx, "sid-w", migrate.Record{"k": "v"}, time.Minute))
	require.NoError(t, ms.Touch(ctx, "sid-w", time.Hour))

	got, err := inner.Get(ctx, "sid-w")
	require.NoError(t, err)
	assert.Equal(t, "v", got["k"])

	require.NoError(t, ms.Destroy(ctx, "sid-w"))
	_, err = inner.Get(ctx, "sid-w")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)
}

func TestVerifySignedCookieActiveSecret(t *testing.T) {
	t.Parallel()

	inner := stores.NewMemoryStore()
	ctx := context.Background()
	mctx := migrate.NewContext(activeSecret(), previousSecret())
	codec := migrate.NewCodec(mctx)
	ms := migrate.NewMigrationStore(inner, mctx, migrate.WithCodec(codec))

	require.NoError(t, inner.Set(ctx, "sid-a", migrate.Record{"authenticatedPrincipal": "u"}, time.Minute))
	cookie, err := codec.SignID("sid-a")
	require.NoError(t, err)

	id, rec, resigned, err := ms.VerifySignedCookie(ctx, cookie)
	require.NoError(t, err)
	assert.Equal(t, "sid-a", id)
	assert.Equal(t, "u", rec["authenticatedPrincipal"])
	assert.Empty(t, resigned, "active-secret cookies need no re-signing")
}

func TestVerifySignedCookieMigratesPreviousSecret(t *testing.T) {
	t.Parallel()

	inner := stores.NewMemoryStore()
	ctx := context.Background()
	prev := previousSecret()

	// Cookie issued before rotation, under what is now the previous secret.
	oldCookie, err := migrate.NewCodecFromSecrets(*prev, nil).SignID("sid-m")
	require.NoError(t, err)
	require.NoError(t, inner.Set(ctx, "sid-m", migrate.Record{"authenticatedPrincipal": "u"}, time.Minute))

	mctx := migrate.NewContext(activeSecret(), prev)
	codec := migrate.NewCodec(mctx)
	ms := migrate.NewMigrationStore(inner, mctx, migrate.WithCodec(codec))

	id, rec, resigned, err := ms.VerifySignedCookie(ctx, oldCookie)
	require.NoError(t, err)
	assert.Equal(t, "sid-m", id)
	assert.Equal(t, "u", rec["authenticatedPrincipal"])
	require.NotEmpty(t, resigned, "previous-secret match must re-sign with the active secret")

	// The fresh cookie verifies under the active secret.
	gotID, usedPrevious, ok := codec.VerifyID(resigned)
	require.True(t, ok)
	assert.Equal(t, "sid-m", gotID)
	assert.False(t, usedPrevious)
}

func TestVerifySignedCookieRejectsUnknownSignature(t *testing.T) {
	t.Parallel()

	mctx := migrate.NewContext(activeSecret(), previousSecret())
	ms := migrate.NewMigrationStore(stores.NewMemoryStore(), mctx, migrate.WithCodec(migrate.NewCodec(mctx)))

	_, _, _, err := ms.VerifySignedCookie(context.Background(), "s:sid.Zm9yZ2VkLXNpZ25hdHVyZQ")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)
}

func TestVerifySignedCookieWithoutCodec(t *testing.T) {
	t.Parallel()

	ms := migrate.NewMigrationStore(stores.NewMemoryStore(), migrate.NewContext(activeSecret(), previousSecret()))

	_, _, _, err := ms.VerifySignedCookie(context.Background(), "s:sid.c2ln")
	assert.ErrorIs(t, err, migrate.ErrSessionNotFound)
}
