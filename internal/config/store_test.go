package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ladder_maker/pkg/errors"
)

func TestFileStore_ReloadKeepsLastGoodSnapshot(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, minimalYAML)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	store := NewFileStore(path, cfg)
	require.Len(t, store.Schedule(), 1)

	// Corrupt the file; reload fails but the previous snapshot keeps serving.
	require.NoError(t, os.WriteFile(path, []byte("{{{not yaml"), 0o600))
	assert.Error(t, store.Reload())
	assert.Len(t, store.Schedule(), 1)

	ladder, err := store.Ladder("main")
	require.NoError(t, err)
	assert.Equal(t, "ACC_1", ladder.Account)
}

func TestFileStore_ReloadPicksUpChanges(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, minimalYAML)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	store := NewFileStore(path, cfg)

	// Remove the ladder entry while keeping the schedule: the orchestrator
	// should then see the entry as unmanaged.
	updated := `
ledger:
  base_url: https://ledger.example.com
signer:
  base_url: https://signer.example.com
schedule:
  - name: main
    account: ACC_1
    pair:
      selling: {code: TOK, issuer: I1}
      buying: {code: USD, issuer: I2}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))
	require.NoError(t, store.Reload())

	require.Len(t, store.Schedule(), 1)
	_, err = store.Ladder("main")
	assert.ErrorIs(t, err, apperrors.ErrConfigMissing)
}

func TestFileStore_MalformedLadderIsMissing(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, minimalYAML)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// Corrupt the in-memory snapshot's ladder so Validate fails on access.
	broken := cfg.Ladders["main"]
	broken.RungCount = 0
	cfg.Ladders["main"] = broken

	store := NewFileStore(path, cfg)
	_, err = store.Ladder("main")
	assert.ErrorIs(t, err, apperrors.ErrConfigMissing)
}
