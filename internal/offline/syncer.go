package offline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SyncReport counts what one sync cycle did
type SyncReport struct {
	Delivered int
	Rejected  int
	Kept      int
}

// SubmitResult tells the PDV what happened to a new sale
type SubmitResult struct {
	OfflineID string
	// Queued is true when the sale was stored locally for later delivery
	Queued   bool
	Delivery DeliveryResult
}

// ErrSaleRejected is returned by Submit when the server refused the sale
var ErrSaleRejected = errors.New("sale rejected by server")

// Syncer delivers queued sales on start, on every interval tick and on demand
type Syncer struct {
	queue    Queue
	client   Deliverer
	logger   *zap.Logger
	interval time.Duration
	notify   chan struct{}
}

// NewSyncer creates a Syncer polling every interval
func NewSyncer(queue Queue, client Deliverer, logger *zap.Logger, interval time.Duration) *Syncer {
	return &Syncer{
		queue:    queue,
		client:   client,
		logger:   logger,
		interval: interval,
		notify:   make(chan struct{}, 1),
	}
}

// Notify asks the running loop for an immediate cycle. It never blocks;
// requests made while a cycle is already pending collapse into one.
func (s *Syncer) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run syncs until ctx is cancelled
func (s *Syncer) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.cycle(ctx, "start")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.cycle(ctx, "interval")
		case <-s.notify:
			s.cycle(ctx, "online")
		}
	}
}

func (s *Syncer) cycle(ctx context.Context, trigger string) {
	report, err := s.SyncOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Sync cycle failed", zap.String("trigger", trigger), zap.Error(err))
		}
		return
	}
	if report.Delivered+report.Rejected+report.Kept > 0 {
		s.logger.Info("Sync cycle finished",
			zap.String("trigger", trigger),
			zap.Int("delivered", report.Delivered),
			zap.Int("rejected", report.Rejected),
			zap.Int("kept", report.Kept),
		)
	}
}

// SyncOnce attempts every queued sale once. Sales are independent: a
// failure on one never stops the others.
func (s *Syncer) SyncOnce(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	pending, err := s.queue.Pending(ctx)
	if err != nil {
		return report, err
	}

	for _, sale := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		offlineID := sale.Payload.OfflineID
		result := s.client.Deliver(ctx, sale.Payload)
		fields := []zap.Field{
			zap.String("offline_id", offlineID),
			zap.String("outcome", result.Outcome.String()),
			zap.Int("status", result.StatusCode),
			zap.Int("attempt", sale.Attempts+1),
		}

		switch result.Outcome {
		case Delivered:
			if err := s.queue.Remove(ctx, offlineID); err != nil {
				return report, fmt.Errorf("failed to remove delivered sale %s: %w", offlineID, err)
			}
			report.Delivered++
			s.logger.Info("Offline sale delivered", append(fields,
				zap.String("sale_id", result.SaleID.String()),
				zap.Bool("replayed", result.Replayed),
			)...)
		case Rejected:
			if err := s.queue.DeadLetter(ctx, offlineID, result.StatusCode, result.Message); err != nil {
				return report, fmt.Errorf("failed to dead-letter sale %s: %w", offlineID, err)
			}
			report.Rejected++
			s.logger.Warn("Offline sale rejected, moved to dead letters", append(fields, zap.String("reason", result.Message))...)
		default:
			if err := s.queue.MarkAttempt(ctx, offlineID, result.Message); err != nil {
				return report, fmt.Errorf("failed to record attempt for sale %s: %w", offlineID, err)
			}
			report.Kept++
			s.logger.Debug("Offline sale kept for retry", append(fields, zap.String("error", result.Message))...)
		}
	}

	return report, nil
}

// Submit assigns an offline id when missing and tries a live delivery. When
// the server cannot be reached the sale is queued and reported as accepted.
func (s *Syncer) Submit(ctx context.Context, payload SalePayload) (SubmitResult, error) {
	if err := payload.Validate(); err != nil {
		return SubmitResult{}, err
	}
	if payload.OfflineID == "" {
		payload.OfflineID = NewOfflineID()
	}

	result := SubmitResult{OfflineID: payload.OfflineID}
	result.Delivery = s.client.Deliver(ctx, payload)

	switch result.Delivery.Outcome {
	case Delivered:
		s.logger.Info("Sale delivered", zap.String("offline_id", payload.OfflineID), zap.String("sale_id", result.Delivery.SaleID.String()))
		return result, nil
	case Rejected:
		return result, fmt.Errorf("%w: %s", ErrSaleRejected, result.Delivery.Message)
	}

	if err := s.queue.Enqueue(ctx, payload); err != nil && !errors.Is(err, ErrSaleAlreadyQueued) {
		return result, err
	}
	result.Queued = true
	s.logger.Info("Server unreachable, sale queued",
		zap.String("offline_id", payload.OfflineID),
		zap.String("error", result.Delivery.Message),
	)
	return result, nil
}
