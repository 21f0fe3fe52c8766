package matching

import (
	"context"
	"log"
	"time"
)

// Scheduler runs the periodic match TTL sweep, independent of request
// handling
type Scheduler struct {
	service  Service
	interval time.Duration
}

func NewScheduler(service Service, interval time.Duration) *Scheduler {
	return &Scheduler{service: service, interval: interval}
}

func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.service.ExpireMatches(ctx); err != nil {
				log.Printf("matching: expiry sweep failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
