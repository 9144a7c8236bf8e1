package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"deedwatch/internal/storage"
)

// ErrNoDispatchers is returned by a Router with nothing configured.
var ErrNoDispatchers = errors.New("alerting: no dispatchers configured")

// Delivery is what a dispatcher reports back for a delivered alert.
type Delivery struct {
	Channel string
	SentAt  time.Time
}

// Dispatcher hands a sale alert to one delivery channel.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, alert storage.SaleAlert) (Delivery, error)
}

// Router tries dispatchers in order and returns the first delivery.
type Router struct {
	dispatchers []Dispatcher
	logger      zerolog.Logger
}

// NewRouter builds a router over dispatchers, in priority order.
func NewRouter(logger zerolog.Logger, dispatchers ...Dispatcher) *Router {
	return &Router{
		dispatchers: dispatchers,
		logger:      logger.With().Str("component", "alert_router").Logger(),
	}
}

// Name reports the channels the router can use.
func (r *Router) Name() string { return "router" }

// Len reports the number of configured dispatchers.
func (r *Router) Len() int { return len(r.dispatchers) }

// Dispatch delivers through the first dispatcher that succeeds.
func (r *Router) Dispatch(ctx context.Context, alert storage.SaleAlert) (Delivery, error) {
	if len(r.dispatchers) == 0 {
		return Delivery{}, ErrNoDispatchers
	}
	var errs []error
	for _, d := range r.dispatchers {
		delivery, err := d.Dispatch(ctx, alert)
		if err == nil {
			if delivery.Channel == "" {
				delivery.Channel = d.Name()
			}
			if delivery.SentAt.IsZero() {
				delivery.SentAt = time.Now().UTC()
			}
			return delivery, nil
		}
		r.logger.Warn().Err(err).Str("channel", d.Name()).Str("alert_id", alert.ID.String()).Msg("dispatch failed, trying next channel")
		errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return Delivery{}, errors.Join(errs...)
}

var _ Dispatcher = (*Router)(nil)
