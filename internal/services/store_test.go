package services

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/doc-qa-extractor/internal/cache"
	"github.com/fyerfyer/doc-qa-extractor/internal/credential"
	"github.com/fyerfyer/doc-qa-extractor/internal/models"
)

func newTestCaches(t *testing.T) map[string]cache.Cache {
	t.Helper()

	mem, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	cfg := cache.DefaultConfig()
	cfg.Type = "redis"
	cfg.RedisAddr = mr.Addr()
	rc, err := cache.NewCache(cfg)
	require.NoError(t, err)

	return map[string]cache.Cache{"memory": mem, "redis": rc}
}

func TestRunStore(t *testing.T) {
	for name, c := range newTestCaches(t) {
		t.Run(name, func(t *testing.T) {
			store := NewRunStore(c, 0)

			_, err := store.Current()
			assert.ErrorIs(t, err, models.ErrRunNotFound)

			run := models.NewRun("run-1", "survey.pdf")
			require.NoError(t, run.Transition(models.StateFormatChecked))
			run.Questions = []string{"Where is the nearest station?"}
			require.NoError(t, store.Save(run))

			got, err := store.Get("run-1")
			require.NoError(t, err)
			assert.Equal(t, models.StateFormatChecked, got.State)
			assert.Equal(t, run.Questions, got.Questions)

			current, err := store.Current()
			require.NoError(t, err)
			assert.Equal(t, "run-1", current.ID)

			other := models.NewRun("run-2", "other.docx")
			require.NoError(t, store.Save(other))
			current, err = store.Current()
			require.NoError(t, err)
			assert.Equal(t, "run-2", current.ID)

			// 删除非当前Run不影响当前标记
			require.NoError(t, store.Delete("run-1"))
			current, err = store.Current()
			require.NoError(t, err)
			assert.Equal(t, "run-2", current.ID)

			require.NoError(t, store.Delete("run-2"))
			_, err = store.Current()
			assert.ErrorIs(t, err, models.ErrRunNotFound)

			assert.ErrorIs(t, store.Delete("run-2"), models.ErrRunNotFound)
		})
	}
}

func TestSessionStore(t *testing.T) {
	for name, c := range newTestCaches(t) {
		t.Run(name, func(t *testing.T) {
			session := NewSessionStore(c, 0)

			key, err := session.APIKey()
			require.NoError(t, err)
			assert.Empty(t, key)

			assert.ErrorIs(t, session.SetAPIKey("short"), credential.ErrInvalidCredential)
			assert.ErrorIs(t, session.SetAPIKey("pk-0123456789abcdefghijkl"), credential.ErrInvalidCredential)

			require.NoError(t, session.SetAPIKey(testAPIKey))
			key, err = session.APIKey()
			require.NoError(t, err)
			assert.Equal(t, testAPIKey, key)

			resolver := credential.NewResolverWithEnv("", "org-config-key-0123456789", session)
			resolved, source := resolver.Resolve()
			assert.Equal(t, testAPIKey, resolved)
			assert.Equal(t, credential.SourceSession, source)

			require.NoError(t, session.ClearAPIKey())
			resolved, source = resolver.Resolve()
			assert.Equal(t, "org-config-key-0123456789", resolved)
			assert.Equal(t, credential.SourceConfig, source)
		})
	}
}
