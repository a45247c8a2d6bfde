package setup

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPolicy = "d5e6bf0500378d4f0da4e8dde6becec7621cd8cbf5cbb9b87013d4cc"

type wizardFixture struct {
	w       *Wizard
	pending *memory.PendingSetupRepo
	configs *memory.GuildConfigRepo
	now     time.Time
}

func newWizardFixture() *wizardFixture {
	f := &wizardFixture{
		pending: memory.NewPendingSetupRepo(),
		configs: memory.NewGuildConfigRepo(),
		now:     time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	f.w = NewWizard(f.pending, f.configs, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	f.w.nowFunc = func() time.Time { return f.now }
	ids := 0
	f.w.newIDFn = func() string {
		ids++
		return "setup-" + string(rune('0'+ids))
	}
	return f
}

func validRequest() StartRequest {
	return StartRequest{
		GuildID:         "guild-1",
		PolicyKey:       testPolicy,
		BaseRoleID:      "role-base",
		BaseRoleName:    "Holder",
		BackupChannelID: "chan-backup",
	}
}

func TestValidPolicyKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{testPolicy, true},
		{strings.ToUpper(testPolicy), false},
		{testPolicy[:55], false},
		{testPolicy + "0", false},
		{strings.Repeat("g", 56), false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidPolicyKey(tt.key), "key %q", tt.key)
	}
}

func TestStart_RejectsBadPolicyKey(t *testing.T) {
	f := newWizardFixture()
	req := validRequest()
	req.PolicyKey = "not-hex"

	_, err := f.w.Start(req)
	assert.ErrorIs(t, err, ErrInvalidPolicyKey)
	assert.Zero(t, f.pending.Len())
}

func TestStart_RejectsMissingFields(t *testing.T) {
	f := newWizardFixture()
	req := validRequest()
	req.BackupChannelID = ""

	_, err := f.w.Start(req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), "BackupChannelID")
}

func TestWizard_NFTFlow(t *testing.T) {
	f := newWizardFixture()

	p, err := f.w.Start(validRequest())
	require.NoError(t, err)
	assert.Equal(t, "setup-1", p.SetupID)
	assert.Equal(t, 1, f.pending.Len())

	cfg, err := f.w.ChooseAssetType("guild-1", p.SetupID, model.AssetTypeNFT)
	require.NoError(t, err)
	assert.Empty(t, cfg.TierRoles)
	assert.Zero(t, f.pending.Len())

	_, err = f.w.SelectTier("guild-1", p.SetupID, "rare", "role-rare")
	require.NoError(t, err)
	_, err = f.w.SelectTier("guild-1", p.SetupID, "common", "")
	require.NoError(t, err)

	stored, ok := f.configs.FindBySetupID("guild-1", p.SetupID)
	require.True(t, ok)
	assert.Equal(t, testPolicy, stored.PolicyKey)
	assert.Equal(t, "role-base", stored.BaseRoleID)
	assert.Equal(t, "chan-backup", stored.BackupChannelID)
	got, ok := stored.TierRole(model.TierRare)
	assert.True(t, ok)
	assert.Equal(t, "role-rare", got)
	_, ok = stored.TierRole(model.TierCommon)
	assert.False(t, ok)
}

func TestWizard_TokenIsUnsupported(t *testing.T) {
	f := newWizardFixture()
	p, err := f.w.Start(validRequest())
	require.NoError(t, err)

	_, err = f.w.ChooseAssetType("guild-1", p.SetupID, model.AssetTypeToken)
	assert.ErrorIs(t, err, ErrUnsupportedAssetType)
	assert.Zero(t, f.pending.Len())
	assert.Empty(t, f.configs.ListByGuild("guild-1"))
}

func TestWizard_SessionExpiry(t *testing.T) {
	f := newWizardFixture()
	p, err := f.w.Start(validRequest())
	require.NoError(t, err)

	f.now = f.now.Add(DefaultSessionTTL)
	_, err = f.w.ChooseAssetType("guild-1", p.SetupID, model.AssetTypeNFT)
	assert.ErrorIs(t, err, ErrSessionExpired)

	_, err = f.w.ChooseAssetType("guild-1", "unknown", model.AssetTypeNFT)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestWizard_SessionBoundToGuild(t *testing.T) {
	f := newWizardFixture()
	p, err := f.w.Start(validRequest())
	require.NoError(t, err)

	_, err = f.w.ChooseAssetType("guild-2", p.SetupID, model.AssetTypeNFT)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestSelectTier_Errors(t *testing.T) {
	f := newWizardFixture()

	_, err := f.w.SelectTier("guild-1", "setup-1", "ultra", "role-x")
	assert.ErrorIs(t, err, ErrInvalidTier)

	_, err = f.w.SelectTier("guild-1", "setup-1", "rare", "role-x")
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestPrune(t *testing.T) {
	f := newWizardFixture()
	_, err := f.w.Start(validRequest())
	require.NoError(t, err)

	f.now = f.now.Add(10 * time.Minute)
	_, err = f.w.Start(validRequest())
	require.NoError(t, err)

	f.now = f.now.Add(25 * time.Minute)
	assert.Equal(t, 1, f.w.Prune())
	assert.Equal(t, 1, f.pending.Len())
}

func TestRunCleanup_NonPositiveInterval(t *testing.T) {
	f := newWizardFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, interval := range []time.Duration{0, -time.Second} {
		var err error
		require.NotPanics(t, func() { err = f.w.RunCleanup(ctx, interval) })
		assert.ErrorIs(t, err, context.Canceled)
	}
}
