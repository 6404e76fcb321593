// Package worker contains background serving loops.
package worker

import (
	"context"
	"log/slog"
	"time"

	"academy/config"
	"academy/internal/delivery"
	"academy/internal/usecase"

	"go.uber.org/fx"
)

const defaultSweepInterval = time.Hour

// sweeper periodically removes expired sessions from the registry. The sweep
// is a single delete-where statement, so overlapping runs are harmless.
type sweeper struct {
	sessions usecase.SessionUsecase
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// SweeperParams holds dependencies for the session sweeper, injected by Fx.
type SweeperParams struct {
	fx.In
	fx.Lifecycle

	Sessions usecase.SessionUsecase
	Config   *config.Config
	Logger   *slog.Logger
}

// NewSweeper builds the expired-session sweeper worker.
func NewSweeper(params SweeperParams) delivery.Delivery {
	interval := params.Config.Sweeper.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	worker := &sweeper{
		sessions: params.Sessions,
		interval: interval,
		logger:   params.Logger,
		stop:     make(chan struct{}),
	}

	params.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			close(worker.stop)

			return nil
		},
	})

	return worker
}

// Serve runs the sweep loop until shutdown. One sweep runs immediately so a
// restart never postpones cleanup by a full interval.
func (w *sweeper) Serve(ctx context.Context) error {
	w.logger.Info("Starting session sweeper", slog.Duration("interval", w.interval))

	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stop:
			w.logger.Info("Stopping session sweeper")

			return nil
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *sweeper) sweep(ctx context.Context) {
	removed, err := w.sessions.SweepExpired(ctx)
	if err != nil {
		w.logger.Error("Session sweep failed", slog.Any("error", err))

		return
	}

	w.logger.Debug("Session sweep completed", slog.Int64("removed", removed))
}
