package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/emperorhan/holder-gate/internal/alert"
	"github.com/emperorhan/holder-gate/internal/metrics"
	"github.com/emperorhan/holder-gate/internal/tracing"
	"golang.org/x/sync/errgroup"
)

// SweepResult aggregates a full pass over every (holder, guild) pair.
type SweepResult struct {
	Units      int       `json:"units"`
	Reconciled int       `json:"reconciled"`
	Skipped    int       `json:"skipped"`
	Errors     int       `json:"errors"`
	Applied    int       `json:"applied"`
	Failed     int       `json:"failed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	failedByGuild map[string]int
}

// Sweep reconciles every verified holder against every guild with configs.
// Units run concurrently up to the worker limit, each under its own timeout;
// a slow or failing unit never holds up the others.
func (s *Service) Sweep(ctx context.Context) *SweepResult {
	ctx, span := tracing.Start(ctx, "reconciliation", "sweep")
	defer span.End()

	start := s.nowFunc()
	result := &SweepResult{StartedAt: start, failedByGuild: make(map[string]int)}
	guilds := s.configs.GuildIDs()
	holders := s.holders.List()

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for _, h := range holders {
		if h.IsRestored() {
			mu.Lock()
			result.Skipped += len(guilds)
			mu.Unlock()
			continue
		}
		for _, guildID := range guilds {
			if ctx.Err() != nil {
				break
			}
			identity, guildID := h.Identity, guildID
			g.Go(func() error {
				unitCtx, cancel := context.WithTimeout(ctx, s.unitTimeout)
				defer cancel()

				res, err := s.Reconcile(unitCtx, identity, guildID)

				mu.Lock()
				defer mu.Unlock()
				result.Units++
				switch {
				case err == nil:
					result.Reconciled++
					result.Applied += res.Applied()
					result.Failed += res.Failed
					if res.Failed > 0 {
						result.failedByGuild[guildID] += res.Failed
					}
				case errors.Is(err, ErrMemberNotFound), errors.Is(err, ErrHolderNotFound), errors.Is(err, ErrUnresolvedAddress):
					result.Skipped++
				default:
					result.Errors++
					s.logger.Warn("sweep unit failed", "identity", identity, "guild", guildID, "error", err)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	result.FinishedAt = s.nowFunc()
	metrics.SweepLatency.Observe(result.FinishedAt.Sub(start).Seconds())

	s.alertFailures(ctx, result)

	s.logger.Info("reconciliation sweep completed",
		"holders", len(holders), "guilds", len(guilds),
		"units", result.Units, "reconciled", result.Reconciled,
		"skipped", result.Skipped, "errors", result.Errors,
		"applied", result.Applied, "failed", result.Failed,
	)
	return result
}

func (s *Service) alertFailures(ctx context.Context, result *SweepResult) {
	guilds := make([]string, 0, len(result.failedByGuild))
	for g := range result.failedByGuild {
		guilds = append(guilds, g)
	}
	sort.Strings(guilds)

	for _, guildID := range guilds {
		failed := result.failedByGuild[guildID]
		_ = s.alerter.Send(ctx, alert.Alert{
			Type:    alert.AlertTypeRoleMutation,
			Guild:   guildID,
			Title:   "Role mutations failed during sweep",
			Message: fmt.Sprintf("%d role changes could not be applied; check the bot's role position and permissions", failed),
			Fields: map[string]string{
				"failed": fmt.Sprintf("%d", failed),
			},
		})
	}
}

// RunPeriodic runs a sweep at the given interval until ctx is cancelled.
// A sweep completes before the next tick is taken.
func (s *Service) RunPeriodic(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	s.logger.Info("periodic reconciliation started", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("periodic reconciliation stopping")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
