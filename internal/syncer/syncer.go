// Package syncer drains the offline queue against the registry once
// connectivity returns.
package syncer

import (
	"context"

	"go.uber.org/zap"

	"github.com/bhataakib02/bpa-breed-recognition-sub001/internal/queue"
	"github.com/bhataakib02/bpa-breed-recognition-sub001/pkg/registry"
)

// Summary reports one sync pass.
type Summary struct {
	Synced int
	Failed int
}

// Syncer replays queued records in capture order.
type Syncer struct {
	queue    *queue.Queue
	registry registry.Client
}

// New creates a syncer.
func New(q *queue.Queue, reg registry.Client) *Syncer {
	return &Syncer{queue: q, registry: reg}
}

// Run attempts every pending record once, oldest first. A failed record
// stays queued with its attempt count bumped and does not block the
// records behind it. Run stops early only when the context is done.
func (s *Syncer) Run(ctx context.Context) (Summary, error) {
	pending, err := s.queue.ListPending(ctx)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, item := range pending {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		saved, err := s.registry.Create(ctx, item.Record)
		if err != nil {
			summary.Failed++
			zap.L().Warn("sync failed, record stays queued",
				zap.String("local_id", item.LocalID),
				zap.Int("attempts", item.SyncAttempts+1),
				zap.Error(err))
			if err := s.queue.BumpSyncAttempts(ctx, item.LocalID); err != nil {
				zap.L().Error("bump sync attempts", zap.String("local_id", item.LocalID), zap.Error(err))
			}
			continue
		}

		if err := s.queue.Remove(ctx, item.LocalID); err != nil {
			// registered remotely but still queued locally; next pass
			// will retry and the registry must dedupe
			zap.L().Error("remove synced record", zap.String("local_id", item.LocalID), zap.Error(err))
			summary.Failed++
			continue
		}

		summary.Synced++
		zap.L().Info("record synced",
			zap.String("local_id", item.LocalID),
			zap.String("id", saved.ID))
	}
	return summary, nil
}
