package pairing

import (
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper periodically purges expired entries from an InMemoryRegistry.
// IsValid already evicts lazily; this only bounds memory for tokens nobody checks again.
type Sweeper struct {
	registry *InMemoryRegistry
	interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewSweeper(registry *InMemoryRegistry, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start is non-blocking. Call Stop to shut the worker down.
func (s *Sweeper) Start() {
	go s.run()
	log.Info().Dur("interval", s.interval).Msg("pairing sweeper started")
}

// Stop blocks until the worker has exited.
func (s *Sweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
	log.Info().Msg("pairing sweeper stopped")
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.registry.PurgeExpired(); n > 0 {
				log.Debug().Int("removed", n).Msg("purged expired pairing tokens")
			}
		case <-s.stopCh:
			return
		}
	}
}
