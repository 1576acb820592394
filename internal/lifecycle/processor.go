package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bidmaster/auction-api/internal/gateway"
	"github.com/bidmaster/auction-api/internal/types"
)

// sweepActor is the identity attributed to sweep-generated audit entries.
var sweepActor = types.User{UserID: "SYSTEM", Name: "Lifecycle Sweep"}

// Processor periodically closes expired items so the stored status catches up
// with the wall clock. The ledger never trusts status alone, so the system
// stays correct even when the sweep is disabled; the sweep only removes the
// window where an expired item still reads OPEN.
type Processor struct {
	service  *Service
	interval time.Duration
}

// NewProcessor creates a sweep processor running at the given interval.
func NewProcessor(service *Service, interval time.Duration) *Processor {
	return &Processor{service: service, interval: interval}
}

// Start begins the sweep loop and blocks until the context is cancelled.
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "lifecycle_sweep").Logger()
	logger.Info().Dur("interval", p.interval).Msg("starting lifecycle sweep")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down lifecycle sweep")
			return
		case <-ticker.C:
			closed, err := p.service.FinalizeExpired(sweepActor)
			if err != nil {
				// A version conflict just means another writer got there
				// first; the next tick re-reads fresh state.
				if errors.Is(err, gateway.ErrConflict) {
					logger.Debug().Msg("sweep lost a commit race, will retry next tick")
					continue
				}
				logger.Error().Err(err).Msg("failed to finalize expired items")
				continue
			}
			if closed > 0 {
				logger.Info().Int("closed", closed).Msg("closed expired items")
			}
		}
	}
}
