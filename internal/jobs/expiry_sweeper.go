package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/automsp/portal-server-go/internal/metrics"
	"github.com/automsp/portal-server-go/internal/repository"
)

const sweepTimeout = 30 * time.Second

// ExpirySweeper periodically deactivates portal tokens whose expiry has passed.
// Rows are kept.
type ExpirySweeper struct {
	tokens   repository.PortalTokenRepository
	metrics  *metrics.Metrics
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewExpirySweeper(tokens repository.PortalTokenRepository, m *metrics.Metrics, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		tokens:   tokens,
		metrics:  m,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *ExpirySweeper) Start() {
	j.wg.Add(1)
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("expiry sweeper started")
}

// Stop ends the loop and waits for an in-flight sweep. Safe to call twice.
func (j *ExpirySweeper) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("expiry sweeper stopped")
	})
}

func (j *ExpirySweeper) run() {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

func (j *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := j.RunOnce(ctx); err != nil {
		log.Error().Err(err).Msg("failed to deactivate expired portal tokens")
	}
}

// RunOnce deactivates expired tokens and returns how many changed.
func (j *ExpirySweeper) RunOnce(ctx context.Context) (int64, error) {
	count, err := j.tokens.DeactivateExpired(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		j.metrics.TokensExpired(count)
		log.Info().Int64("count", count).Msg("deactivated expired portal tokens")
	}
	return count, nil
}
