package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/BHARGAVSAI558/final-zero-trust/internal/config"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/metrics"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/models"
	"github.com/BHARGAVSAI558/final-zero-trust/internal/store"
)

// Source is the slice of the session store the jobs read.
type Source interface {
	AuditChain() models.AuditChain
	LiveIntents() []store.Intent
}

// Scheduler runs periodic housekeeping over the session store: audit chain
// linkage checks and the pending-intent gauge, which otherwise only moves
// when the store changes.
type Scheduler struct {
	cron   *cron.Cron
	source Source
	cfg    config.JobsConfig
	log    zerolog.Logger

	lastBreaks int
}

func NewScheduler(source Source, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:   c,
		source: source,
		cfg:    cfg,
		log:    log.With().Str("component", "jobs").Logger(),
	}
}

func (s *Scheduler) Start() error {
	if s.source == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.AuditCheck, s.CheckAuditChain); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.IntentGauge, s.RefreshIntentGauge); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		<-s.cron.Stop().Done()
		cancel()
	}()
	return func() {
		<-ctx.Done()
	}
}

// CheckAuditChain verifies hash linkage of the last fetched chain. Breaks
// are reported, never repaired.
func (s *Scheduler) CheckAuditChain() {
	chain := s.source.AuditChain()
	if len(chain.Blocks) == 0 {
		return
	}
	breaks := store.VerifyChain(chain.Blocks)
	metrics.AuditChainBreaks.Set(float64(len(breaks)))

	if len(breaks) != s.lastBreaks {
		if len(breaks) == 0 {
			s.log.Info().Int("blocks", len(chain.Blocks)).Msg("audit chain linkage restored")
		}
		for _, b := range breaks {
			s.log.Warn().
				Int64("index", b.Index).
				Str("expected", b.Expected).
				Str("found", b.Found).
				Bool("server_valid", chain.Valid).
				Msg("audit chain linkage broken")
		}
	}
	s.lastBreaks = len(breaks)
}

func (s *Scheduler) RefreshIntentGauge() {
	metrics.PendingIntents.Set(float64(len(s.source.LiveIntents())))
}
