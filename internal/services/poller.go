package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// StatusPoller refreshes the active stream's live status on an interval
type StatusPoller struct {
	streams  *StreamService
	interval time.Duration
	log      *logrus.Logger
}

func NewStatusPoller(streams *StreamService, interval time.Duration, log *logrus.Logger) *StatusPoller {
	return &StatusPoller{streams: streams, interval: interval, log: log}
}

// Run polls until ctx is cancelled
func (p *StatusPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.WithField("interval", p.interval.String()).Info("stream status poller started")

	p.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.log.Info("stream status poller stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *StatusPoller) poll(ctx context.Context) {
	if err := p.streams.RefreshActive(ctx); err != nil && ctx.Err() == nil {
		p.log.WithError(err).Warn("stream status refresh failed, keeping stored values")
	}
}
