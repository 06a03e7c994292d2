package worker

import (
	"context"
	"time"

	"wallet-service/internal/usecase"

	"go.uber.org/zap"
)

// PayoutScheduler fires the hourly and daily payout runs. The
// per-period guard lives in the payout usecase's selection query, so
// an overlapping or duplicate firing pays nothing twice.
type PayoutScheduler struct {
	payoutUC *usecase.PayoutUsecase

	hourlyInterval time.Duration
	dailyInterval  time.Duration

	logger   *zap.Logger
	stopChan chan struct{}
}

func NewPayoutScheduler(
	payoutUC *usecase.PayoutUsecase,
	hourlyInterval, dailyInterval time.Duration,
	logger *zap.Logger,
) *PayoutScheduler {
	return &PayoutScheduler{
		payoutUC:       payoutUC,
		hourlyInterval: hourlyInterval,
		dailyInterval:  dailyInterval,
		logger:         logger,
		stopChan:       make(chan struct{}),
	}
}

// Start runs both cadences until Stop or context cancellation. The
// daily ticker is aligned to the next midnight before settling into
// its fixed interval.
func (s *PayoutScheduler) Start(ctx context.Context) {
	s.logger.Info("starting payout scheduler",
		zap.Duration("hourly_interval", s.hourlyInterval),
		zap.Duration("daily_interval", s.dailyInterval))

	hourly := time.NewTicker(s.hourlyInterval)
	defer hourly.Stop()

	midnight := time.NewTimer(untilNextMidnight(time.Now()))
	defer midnight.Stop()

	var daily *time.Ticker
	var dailyC <-chan time.Time

	for {
		select {
		case <-hourly.C:
			s.runHourly(ctx)

		case <-midnight.C:
			s.runDaily(ctx)
			daily = time.NewTicker(s.dailyInterval)
			dailyC = daily.C

		case <-dailyC:
			s.runDaily(ctx)

		case <-s.stopChan:
			s.logger.Info("stopping payout scheduler")
			if daily != nil {
				daily.Stop()
			}
			return

		case <-ctx.Done():
			s.logger.Info("context cancelled, stopping payout scheduler")
			if daily != nil {
				daily.Stop()
			}
			return
		}
	}
}

func (s *PayoutScheduler) Stop() {
	close(s.stopChan)
}

func (s *PayoutScheduler) runHourly(ctx context.Context) {
	processed, err := s.payoutUC.RunHourly(ctx, time.Now())
	if err != nil {
		s.logger.Error("hourly payout run failed", zap.Error(err))
		return
	}
	s.logger.Info("hourly payout run finished", zap.Int("processed", processed))
}

func (s *PayoutScheduler) runDaily(ctx context.Context) {
	processed, err := s.payoutUC.RunDaily(ctx, time.Now())
	if err != nil {
		s.logger.Error("daily payout run failed", zap.Error(err))
		return
	}
	s.logger.Info("daily payout run finished", zap.Int("processed", processed))
}

func untilNextMidnight(now time.Time) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
	return next.Sub(now)
}
