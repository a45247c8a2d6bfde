package backup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/emperorhan/holder-gate/internal/alert"
	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	mu      sync.Mutex
	sent    map[string][]string // channel -> messages, oldest first
	sendErr map[string]error
	readErr error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{sent: make(map[string][]string), sendErr: make(map[string]error)}
}

func (f *fakeChannel) SendMessage(_ context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[channelID]; err != nil {
		return err
	}
	f.sent[channelID] = append(f.sent[channelID], content)
	return nil
}

func (f *fakeChannel) RecentMessages(_ context.Context, channelID string, limit int) ([]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.sent[channelID]
	var out []string
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i])
	}
	return out, nil
}

type fakeRoles map[string][]model.Role

func (f fakeRoles) GuildRoles(_ context.Context, guildID string) ([]model.Role, error) {
	roles, ok := f[guildID]
	if !ok {
		return nil, errors.New("unknown guild")
	}
	return roles, nil
}

type countingAlerter struct{ n int }

func (c *countingAlerter) Send(context.Context, alert.Alert) error {
	c.n++
	return nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDumpThenRestore(t *testing.T) {
	configs := memory.NewGuildConfigRepo()
	configs.Append(model.GuildConfig{GuildID: "g1", PolicyKey: "p1", BackupChannelID: "c1", AssetType: model.AssetTypeNFT})
	configs.Append(model.GuildConfig{GuildID: "g1", PolicyKey: "p2", BackupChannelID: "c1", AssetType: model.AssetTypeNFT})

	holders := memory.NewHolderRepo()
	h := model.NewVerifiedHolder("111", "addr1a", time.Now())
	h.AssignedRoleIDs["r-base"] = struct{}{}
	h.AssignedRoleIDs["r-rare"] = struct{}{}
	holders.Put(h)
	holders.Put(model.NewVerifiedHolder("222", "addr1b", time.Now())) // no roles

	ch := newFakeChannel()
	roles := fakeRoles{"g1": {{ID: "r-base", Name: "Holder"}, {ID: "r-rare", Name: "Rare"}}}

	d := NewDumper(configs, holders, roles, ch, nil, discard())
	res := d.Dump(context.Background())
	assert.Equal(t, 1, res.Channels, "duplicate channels are written once")
	assert.Equal(t, 1, res.Messages)
	assert.Zero(t, res.Failures)

	restored := memory.NewHolderRepo()
	n, err := NewRestorer(ch, restored, discard()).Restore(context.Background(), "g1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, ok := restored.Get("111")
	require.True(t, ok)
	assert.True(t, got.IsRestored())
	assert.Empty(t, got.AssignedRoleIDs)
	assert.Equal(t, "g1", got.RestoredGuildID)
	assert.Equal(t, []string{"Holder", "Rare"}, got.RestoredRoleNames)
}

func TestDump_CarriesRestoredNamesForward(t *testing.T) {
	configs := memory.NewGuildConfigRepo()
	configs.Append(model.GuildConfig{GuildID: "g1", BackupChannelID: "c1"})

	holders := memory.NewHolderRepo()
	h := model.NewVerifiedHolder("333", model.RestoredAddress, time.Now())
	h.RestoredGuildID = "g1"
	h.RestoredRoleNames = []string{"Mythical"}
	holders.Put(h)

	ch := newFakeChannel()
	d := NewDumper(configs, holders, fakeRoles{"g1": nil}, ch, nil, discard())
	d.Dump(context.Background())

	got, ok := Decode(ch.sent["c1"])
	require.True(t, ok)
	assert.Equal(t, []string{"Mythical"}, got["333"])
}

func TestDump_RestoredNamesStayInTheirGuild(t *testing.T) {
	configs := memory.NewGuildConfigRepo()
	configs.Append(model.GuildConfig{GuildID: "gA", BackupChannelID: "cA"})
	configs.Append(model.GuildConfig{GuildID: "gB", BackupChannelID: "cB"})

	ch := newFakeChannel()
	ch.sent["cA"] = Encode([]Entry{{Identity: "111", RoleNames: []string{"Guild A Whale"}}}, "old")

	holders := memory.NewHolderRepo()
	n, err := NewRestorer(ch, holders, discard()).Restore(context.Background(), "gA", "cA")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	d := NewDumper(configs, holders, fakeRoles{"gA": nil, "gB": nil}, ch, nil, discard())
	res := d.Dump(context.Background())
	assert.Zero(t, res.Failures)

	gotA, ok := Decode(ch.sent["cA"])
	require.True(t, ok)
	assert.Equal(t, []string{"Guild A Whale"}, gotA["111"])

	assert.Equal(t, []string{EmptyMessage}, ch.sent["cB"])

	other := memory.NewHolderRepo()
	n, err = NewRestorer(ch, other, discard()).Restore(context.Background(), "gB", "cB")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, other.Len())
}

func TestDump_EmptySet(t *testing.T) {
	configs := memory.NewGuildConfigRepo()
	configs.Append(model.GuildConfig{GuildID: "g1", BackupChannelID: "c1"})

	ch := newFakeChannel()
	d := NewDumper(configs, memory.NewHolderRepo(), fakeRoles{"g1": nil}, ch, nil, discard())
	d.Dump(context.Background())

	assert.Equal(t, []string{EmptyMessage}, ch.sent["c1"])
}

func TestDump_ChannelFailureIsolated(t *testing.T) {
	configs := memory.NewGuildConfigRepo()
	configs.Append(model.GuildConfig{GuildID: "g1", BackupChannelID: "bad"})
	configs.Append(model.GuildConfig{GuildID: "g1", BackupChannelID: "good"})
	configs.Append(model.GuildConfig{GuildID: "g2", BackupChannelID: "other"})

	ch := newFakeChannel()
	ch.sendErr["bad"] = errors.New("missing access")
	alerter := &countingAlerter{}

	d := NewDumper(configs, memory.NewHolderRepo(), fakeRoles{"g1": nil}, ch, alerter, discard())
	res := d.Dump(context.Background())

	assert.Equal(t, 2, res.Failures, "bad channel and g2 role lookup")
	assert.Len(t, ch.sent["good"], 1)
	assert.Equal(t, 2, alerter.n)
}

func TestRestore_NoBackup(t *testing.T) {
	ch := newFakeChannel()
	ch.sent["c1"] = []string{"hello", "world"}

	_, err := NewRestorer(ch, memory.NewHolderRepo(), discard()).Restore(context.Background(), "g1", "c1")
	assert.ErrorIs(t, err, ErrNoBackup)
}

func TestRestore_ReadError(t *testing.T) {
	ch := newFakeChannel()
	ch.readErr = errors.New("unknown channel")

	_, err := NewRestorer(ch, memory.NewHolderRepo(), discard()).Restore(context.Background(), "g1", "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoBackup)
}

func TestDumper_RunPeriodicStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewDumper(memory.NewGuildConfigRepo(), memory.NewHolderRepo(), fakeRoles{}, newFakeChannel(), nil, discard())
	assert.ErrorIs(t, d.RunPeriodic(ctx, time.Hour), context.Canceled)
}
