package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/emperorhan/holder-gate/internal/alert"
	"github.com/emperorhan/holder-gate/internal/chain"
	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/metrics"
	"github.com/emperorhan/holder-gate/internal/store"
	"github.com/emperorhan/holder-gate/internal/tier"
	"github.com/emperorhan/holder-gate/internal/tracing"
)

var (
	// ErrHolderNotFound is returned when the identity has not verified a wallet.
	ErrHolderNotFound = errors.New("verified holder not found")
	// ErrUnresolvedAddress is returned for holders restored from a backup,
	// whose wallet address is unknown until they verify again.
	ErrUnresolvedAddress = errors.New("holder address unresolved")
	// ErrMemberNotFound is returned by MemberRoles when the identity is not a
	// member of the guild.
	ErrMemberNotFound = errors.New("guild member not found")
)

// MemberRoles reads and changes a member's roles on the chat platform. The
// platform's view is authoritative; AssignedRoleIDs is only a local record.
type MemberRoles interface {
	MemberRoleIDs(ctx context.Context, guildID, identity string) ([]string, error)
	AddRole(ctx context.Context, guildID, identity, roleID string) error
	RemoveRole(ctx context.Context, guildID, identity, roleID string) error
}

// Op is a role mutation kind.
type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Mutation is one attempted role change.
type Mutation struct {
	Op        Op     `json:"op"`
	RoleID    string `json:"role_id"`
	PolicyKey string `json:"policy_key"`
	Err       error  `json:"-"`
}

// Result summarizes one Reconcile call.
type Result struct {
	Identity  string     `json:"identity"`
	GuildID   string     `json:"guild_id"`
	Configs   int        `json:"configs"`
	Mutations []Mutation `json:"mutations"`
	Failed    int        `json:"failed"`
	CheckedAt time.Time  `json:"checked_at"`
}

// Applied counts mutations that succeeded.
func (r *Result) Applied() int {
	return len(r.Mutations) - r.Failed
}

// Service keeps each verified holder's roles in line with their holdings.
type Service struct {
	configs     store.GuildConfigRepository
	holders     store.HolderRepository
	members     MemberRoles
	holdings    chain.HoldingsLookup
	policy      *tier.Policy
	alerter     alert.Alerter
	logger      *slog.Logger
	locks       *keyedMutex
	workers     int
	unitTimeout time.Duration
	nowFunc     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithWorkers bounds how many (holder, guild) units a sweep runs at once.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithUnitTimeout bounds the time spent on one (holder, guild) unit in a sweep.
func WithUnitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.unitTimeout = d
		}
	}
}

func NewService(
	configs store.GuildConfigRepository,
	holders store.HolderRepository,
	members MemberRoles,
	holdings chain.HoldingsLookup,
	policy *tier.Policy,
	alerter alert.Alerter,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if policy == nil {
		policy = tier.NewPolicy(nil)
	}
	if alerter == nil {
		alerter = &alert.NoopAlerter{}
	}
	s := &Service{
		configs:     configs,
		holders:     holders,
		members:     members,
		holdings:    holdings,
		policy:      policy,
		alerter:     alerter,
		logger:      logger.With("component", "reconciliation"),
		locks:       newKeyedMutex(),
		workers:     4,
		unitTimeout: time.Minute,
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile brings identity's roles in guildID in line with its holdings
// under every non-fungible config of the guild. Mutation failures are logged
// and counted in the result; they never abort the remaining mutations.
// Running it twice with unchanged holdings and roles mutates nothing the
// second time.
func (s *Service) Reconcile(ctx context.Context, identity, guildID string) (result *Result, err error) {
	ctx, span := tracing.Start(ctx, "reconciliation", "reconcile", "identity", identity, "guild", guildID)
	defer func() { tracing.End(span, err) }()

	unlock := s.locks.Lock(identity)
	defer unlock()

	holder, ok := s.holders.Get(identity)
	if !ok {
		return nil, fmt.Errorf("reconcile %s: %w", identity, ErrHolderNotFound)
	}
	if holder.IsRestored() {
		return nil, fmt.Errorf("reconcile %s: %w", identity, ErrUnresolvedAddress)
	}

	result = &Result{Identity: identity, GuildID: guildID}
	configs := nftConfigs(s.configs.ListByGuild(guildID))
	result.Configs = len(configs)

	if len(configs) > 0 {
		if err := s.reconcileConfigs(ctx, holder, guildID, configs, result); err != nil {
			metrics.ReconciliationRunsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	result.CheckedAt = s.nowFunc()
	stale := false
	if err := s.holders.Update(identity, func(h *model.VerifiedHolder) {
		// The holder re-verified with another wallet mid-run; these mutations
		// were computed for the old one.
		if h.Address != holder.Address {
			stale = true
			return
		}
		for _, m := range result.Mutations {
			if m.Err != nil {
				continue
			}
			switch m.Op {
			case OpAdd:
				h.AssignedRoleIDs[m.RoleID] = struct{}{}
			case OpRemove:
				delete(h.AssignedRoleIDs, m.RoleID)
			}
		}
		h.LastReconciledAt = result.CheckedAt
	}); err != nil {
		// Holder vanished mid-run; roles were still applied.
		s.logger.Warn("record reconcile result", "identity", identity, "error", err)
	}
	if stale {
		s.logger.Info("reconcile result not recorded: address changed",
			"identity", identity, "guild", guildID, "address", holder.Address)
	}

	metrics.ReconciliationRunsTotal.WithLabelValues("ok").Inc()
	if len(result.Mutations) > 0 {
		s.logger.Info("roles reconciled",
			"identity", identity, "guild", guildID,
			"applied", result.Applied(), "failed", result.Failed,
		)
	}
	return result, nil
}

func (s *Service) reconcileConfigs(ctx context.Context, holder model.VerifiedHolder, guildID string, configs []model.GuildConfig, result *Result) error {
	current, err := s.members.MemberRoleIDs(ctx, guildID, holder.Identity)
	if err != nil {
		return fmt.Errorf("read member roles: %w", err)
	}
	held := make(map[string]struct{}, len(current))
	for _, id := range current {
		held[id] = struct{}{}
	}

	// Holdings are per address, so one lookup serves every policy of the guild.
	// A failed lookup mutates nothing, unlike an empty result which strips
	// roles: an outage must not revoke every holder's roles.
	counts, err := s.holdings.AssetCounts(ctx, holder.Address)
	if err != nil {
		return fmt.Errorf("lookup holdings: %w", err)
	}

	for _, cfg := range configs {
		s.reconcileConfig(ctx, holder.Identity, guildID, cfg, counts[cfg.PolicyKey], held, result)
	}
	return nil
}

func (s *Service) reconcileConfig(ctx context.Context, identity, guildID string, cfg model.GuildConfig, count int, held map[string]struct{}, result *Result) {
	hasAny := count > 0
	desiredRole := ""
	if t, ok := s.policy.TierFor(count, cfg.TierRoles); ok {
		desiredRole = cfg.TierRoles[t]
	}
	has := func(id string) bool {
		_, ok := held[id]
		return ok
	}

	if cfg.BaseRoleID != "" {
		if hasAny && !has(cfg.BaseRoleID) {
			s.mutate(ctx, OpAdd, identity, guildID, cfg, cfg.BaseRoleID, held, result)
		} else if !hasAny && has(cfg.BaseRoleID) {
			s.mutate(ctx, OpRemove, identity, guildID, cfg, cfg.BaseRoleID, held, result)
		}
	}

	for _, t := range model.Tiers {
		roleID, ok := cfg.TierRole(t)
		if !ok || !has(roleID) {
			continue
		}
		if hasAny && (roleID == desiredRole || roleID == cfg.BaseRoleID) {
			continue
		}
		s.mutate(ctx, OpRemove, identity, guildID, cfg, roleID, held, result)
	}

	if hasAny && desiredRole != "" && !has(desiredRole) {
		s.mutate(ctx, OpAdd, identity, guildID, cfg, desiredRole, held, result)
	}
}

func (s *Service) mutate(ctx context.Context, op Op, identity, guildID string, cfg model.GuildConfig, roleID string, held map[string]struct{}, result *Result) {
	var err error
	switch op {
	case OpAdd:
		err = s.members.AddRole(ctx, guildID, identity, roleID)
	case OpRemove:
		err = s.members.RemoveRole(ctx, guildID, identity, roleID)
	}

	m := Mutation{Op: op, RoleID: roleID, PolicyKey: cfg.PolicyKey, Err: err}
	result.Mutations = append(result.Mutations, m)
	if err != nil {
		result.Failed++
		metrics.RoleMutationsTotal.WithLabelValues(string(op), "error").Inc()
		s.logger.Warn("role mutation failed",
			"op", op, "identity", identity, "guild", guildID, "role", roleID, "error", err)
		return
	}

	metrics.RoleMutationsTotal.WithLabelValues(string(op), "ok").Inc()
	if op == OpAdd {
		held[roleID] = struct{}{}
	} else {
		delete(held, roleID)
	}
}

func nftConfigs(configs []model.GuildConfig) []model.GuildConfig {
	out := configs[:0]
	for _, c := range configs {
		if c.AssetType == model.AssetTypeNFT {
			out = append(out, c)
		}
	}
	return out
}
