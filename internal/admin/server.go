package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/emperorhan/holder-gate/internal/backup"
	"github.com/emperorhan/holder-gate/internal/domain/model"
	"github.com/emperorhan/holder-gate/internal/reconciliation"
	"github.com/emperorhan/holder-gate/internal/store"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

// Reconciler runs role reconciliation on demand.
type Reconciler interface {
	Reconcile(ctx context.Context, identity, guildID string) (*reconciliation.Result, error)
	Sweep(ctx context.Context) *reconciliation.SweepResult
}

// BackupRunner writes a backup of every guild on demand.
type BackupRunner interface {
	Dump(ctx context.Context) backup.DumpResult
}

// Restorer loads verified holders from a backup channel.
type Restorer interface {
	Restore(ctx context.Context, guildID, channelID string) (int, error)
}

// PendingCounter reports in-flight verification attempts.
type PendingCounter interface {
	Len() int
}

// Server provides an HTTP-based admin API for operational management.
type Server struct {
	configs    store.GuildConfigRepository
	holders    store.HolderRepository
	reconciler Reconciler
	backups    BackupRunner
	restorer   Restorer
	pending    PendingCounter
	username   string
	password   string
	logger     *slog.Logger
}

func NewServer(
	configs store.GuildConfigRepository,
	holders store.HolderRepository,
	logger *slog.Logger,
	opts ...ServerOption,
) *Server {
	s := &Server{
		configs: configs,
		holders: holders,
		logger:  logger.With("component", "admin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerOption configures optional dependencies for the admin server.
type ServerOption func(*Server)

func WithReconciler(r Reconciler) ServerOption {
	return func(s *Server) { s.reconciler = r }
}

func WithBackupRunner(b BackupRunner) ServerOption {
	return func(s *Server) { s.backups = b }
}

func WithRestorer(r Restorer) ServerOption {
	return func(s *Server) { s.restorer = r }
}

func WithPendingCounter(p PendingCounter) ServerOption {
	return func(s *Server) { s.pending = p }
}

// WithBasicAuth requires the given credentials on every request. An empty
// username leaves the API open.
func WithBasicAuth(username, password string) ServerOption {
	return func(s *Server) {
		s.username = username
		s.password = password
	}
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/status", s.handleStatus)
	mux.HandleFunc("GET /admin/v1/guilds", s.handleListGuilds)
	mux.HandleFunc("GET /admin/v1/holders", s.handleListHolders)
	mux.HandleFunc("POST /admin/v1/reconcile", s.handleReconcile)
	mux.HandleFunc("POST /admin/v1/backup", s.handleBackup)
	mux.HandleFunc("POST /admin/v1/restore", s.handleRestore)

	if s.username == "" {
		return mux
	}
	return s.requireAuth(mux)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="holder-gate admin"`)
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSONBody reads and decodes a JSON request body into v.
// Returns false (and writes an error response) if decoding fails.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

type statusResponse struct {
	Guilds          int `json:"guilds"`
	Configs         int `json:"configs"`
	VerifiedHolders int `json:"verified_holders"`
	RestoredHolders int `json:"restored_holders"`
	PendingAttempts int `json:"pending_attempts"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp statusResponse
	for _, guildID := range s.configs.GuildIDs() {
		resp.Guilds++
		resp.Configs += len(s.configs.ListByGuild(guildID))
	}
	for _, h := range s.holders.List() {
		resp.VerifiedHolders++
		if h.IsRestored() {
			resp.RestoredHolders++
		}
	}
	if s.pending != nil {
		resp.PendingAttempts = s.pending.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

type guildConfigResponse struct {
	GuildID         string            `json:"guild_id"`
	SetupID         string            `json:"setup_id"`
	PolicyKey       string            `json:"policy_key"`
	AssetType       string            `json:"asset_type"`
	BaseRoleID      string            `json:"base_role_id"`
	BackupChannelID string            `json:"backup_channel_id"`
	TierRoles       map[string]string `json:"tier_roles,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

func (s *Server) handleListGuilds(w http.ResponseWriter, r *http.Request) {
	guildIDs := s.configs.GuildIDs()
	if only := r.URL.Query().Get("guild_id"); only != "" {
		guildIDs = []string{only}
	}

	resp := []guildConfigResponse{}
	for _, guildID := range guildIDs {
		for _, cfg := range s.configs.ListByGuild(guildID) {
			item := guildConfigResponse{
				GuildID:         cfg.GuildID,
				SetupID:         cfg.SetupID,
				PolicyKey:       cfg.PolicyKey,
				AssetType:       string(cfg.AssetType),
				BaseRoleID:      cfg.BaseRoleID,
				BackupChannelID: cfg.BackupChannelID,
				CreatedAt:       cfg.CreatedAt,
			}
			for _, t := range model.Tiers {
				if roleID, ok := cfg.TierRole(t); ok {
					if item.TierRoles == nil {
						item.TierRoles = make(map[string]string)
					}
					item.TierRoles[string(t)] = roleID
				}
			}
			resp = append(resp, item)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type holderResponse struct {
	Identity          string     `json:"identity"`
	Address           string     `json:"address"`
	Restored          bool       `json:"restored"`
	AssignedRoleIDs   []string   `json:"assigned_role_ids"`
	RestoredGuildID   string     `json:"restored_guild_id,omitempty"`
	RestoredRoleNames []string   `json:"restored_role_names,omitempty"`
	VerifiedAt        time.Time  `json:"verified_at"`
	LastReconciledAt  *time.Time `json:"last_reconciled_at,omitempty"`
}

func toHolderResponse(h model.VerifiedHolder) holderResponse {
	roles := make([]string, 0, len(h.AssignedRoleIDs))
	for id := range h.AssignedRoleIDs {
		roles = append(roles, id)
	}
	sort.Strings(roles)

	resp := holderResponse{
		Identity:          h.Identity,
		Address:           h.Address,
		Restored:          h.IsRestored(),
		AssignedRoleIDs:   roles,
		RestoredGuildID:   h.RestoredGuildID,
		RestoredRoleNames: h.RestoredRoleNames,
		VerifiedAt:        h.VerifiedAt,
	}
	if !h.LastReconciledAt.IsZero() {
		t := h.LastReconciledAt
		resp.LastReconciledAt = &t
	}
	return resp
}

func (s *Server) handleListHolders(w http.ResponseWriter, r *http.Request) {
	if identity := r.URL.Query().Get("identity"); identity != "" {
		h, ok := s.holders.Get(identity)
		if !ok {
			http.Error(w, `{"error":"holder not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, []holderResponse{toHolderResponse(h)})
		return
	}

	holders := s.holders.List()
	sort.Slice(holders, func(i, j int) bool { return holders[i].Identity < holders[j].Identity })
	resp := make([]holderResponse, len(holders))
	for i, h := range holders {
		resp[i] = toHolderResponse(h)
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Reconciliation endpoint ---

type reconcileRequest struct {
	Identity string `json:"identity"`
	GuildID  string `json:"guild_id"`
}

type reconcileResponse struct {
	*reconciliation.Result
	Applied int `json:"applied"`
}

// handleReconcile runs one identity in one guild when both are given and a
// full sweep otherwise.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		http.Error(w, `{"error":"reconciliation not available"}`, http.StatusServiceUnavailable)
		return
	}

	var req reconcileRequest
	if r.ContentLength != 0 && !decodeJSONBody(w, r, &req) {
		return
	}

	if (req.Identity == "") != (req.GuildID == "") {
		http.Error(w, `{"error":"identity and guild_id must be given together"}`, http.StatusBadRequest)
		return
	}

	if req.Identity == "" {
		writeJSON(w, http.StatusOK, s.reconciler.Sweep(r.Context()))
		return
	}

	result, err := s.reconciler.Reconcile(r.Context(), req.Identity, req.GuildID)
	switch {
	case errors.Is(err, reconciliation.ErrHolderNotFound):
		http.Error(w, `{"error":"holder not found"}`, http.StatusNotFound)
		return
	case errors.Is(err, reconciliation.ErrUnresolvedAddress):
		http.Error(w, `{"error":"holder was restored from backup and has no address"}`, http.StatusConflict)
		return
	case err != nil:
		s.logger.Error("reconciliation failed", "error", err, "identity", req.Identity, "guild", req.GuildID)
		http.Error(w, `{"error":"reconciliation failed"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, reconcileResponse{Result: result, Applied: result.Applied()})
}

// --- Backup endpoints ---

type backupResponse struct {
	Guilds   int `json:"guilds"`
	Channels int `json:"channels"`
	Messages int `json:"messages"`
	Failures int `json:"failures"`
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	if s.backups == nil {
		http.Error(w, `{"error":"backup not available"}`, http.StatusServiceUnavailable)
		return
	}

	res := s.backups.Dump(r.Context())
	writeJSON(w, http.StatusOK, backupResponse{
		Guilds:   res.Guilds,
		Channels: res.Channels,
		Messages: res.Messages,
		Failures: res.Failures,
	})
}

type restoreRequest struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	if s.restorer == nil {
		http.Error(w, `{"error":"restore not available"}`, http.StatusServiceUnavailable)
		return
	}

	var req restoreRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ChannelID == "" {
		http.Error(w, `{"error":"channel_id is required"}`, http.StatusBadRequest)
		return
	}
	if req.GuildID == "" {
		req.GuildID = s.backupChannelGuild(req.ChannelID)
	}
	if req.GuildID == "" {
		http.Error(w, `{"error":"guild_id is required for a channel no guild backs up to"}`, http.StatusBadRequest)
		return
	}

	n, err := s.restorer.Restore(r.Context(), req.GuildID, req.ChannelID)
	switch {
	case errors.Is(err, backup.ErrNoBackup):
		http.Error(w, `{"error":"no backup found in channel"}`, http.StatusNotFound)
		return
	case err != nil:
		s.logger.Error("restore failed", "error", err, "guild", req.GuildID, "channel", req.ChannelID)
		http.Error(w, `{"error":"restore failed"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"restored": n})
}

// backupChannelGuild returns the guild that backs up to channelID, or "".
func (s *Server) backupChannelGuild(channelID string) string {
	for _, guildID := range s.configs.GuildIDs() {
		for _, c := range s.configs.ListByGuild(guildID) {
			if c.BackupChannelID == channelID {
				return guildID
			}
		}
	}
	return ""
}
