package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"paperledger/internal/domain"
	"paperledger/internal/service"
)

// WarmResult summarizes one warmer run
type WarmResult struct {
	Symbols   int `json:"symbols"`
	Refreshed int `json:"refreshed"`
	Failed    int `json:"failed"`
}

// QuoteWarmer periodically refreshes cached quotes for every symbol with an OPEN position,
// so dashboard polls are served from the cache.
type QuoteWarmer struct {
	cron     *cron.Cron
	schedule string
	repo     domain.PositionRepository
	refresh  service.QuoteLookup
	timeout  time.Duration
	logger   *zap.Logger
}

// NewQuoteWarmer creates a warmer. schedule is a seconds-enabled cron spec.
func NewQuoteWarmer(schedule string, repo domain.PositionRepository, refresh service.QuoteLookup, logger *zap.Logger) *QuoteWarmer {
	if schedule == "" {
		schedule = "*/10 * * * * *"
	}
	return &QuoteWarmer{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		schedule: schedule,
		repo:     repo,
		refresh:  refresh,
		timeout:  30 * time.Second,
		logger:   logger,
	}
}

// Start registers the job and starts the cron scheduler
func (w *QuoteWarmer) Start() error {
	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()

		if _, err := w.RunNow(ctx); err != nil {
			w.logger.Error("scheduled quote warm failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule quote warmer %q: %w", w.schedule, err)
	}

	w.cron.Start()
	w.logger.Info("quote warmer started", zap.String("schedule", w.schedule))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (w *QuoteWarmer) Stop() {
	<-w.cron.Stop().Done()
	w.logger.Info("quote warmer stopped")
}

// RunNow refreshes quotes for the distinct symbols of OPEN positions
func (w *QuoteWarmer) RunNow(ctx context.Context) (WarmResult, error) {
	positions, err := w.repo.List(ctx, domain.PositionFilter{Status: domain.StatusOpen})
	if err != nil {
		return WarmResult{}, fmt.Errorf("failed to list open positions: %w", err)
	}

	symbols := service.OpenSymbols(positions)
	result := WarmResult{Symbols: len(symbols)}
	if len(symbols) == 0 {
		return result, nil
	}

	for _, q := range w.refresh.Lookup(ctx, symbols) {
		if q.Err != nil {
			result.Failed++
			continue
		}
		result.Refreshed++
	}

	w.logger.Debug("quotes warmed",
		zap.Int("symbols", result.Symbols),
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}
