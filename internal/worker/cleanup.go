// Package worker runs the background cleanup loop for channels whose destroy
// path partially failed.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/voicehub/backend/internal/voice"
	"github.com/voicehub/backend/pkg/queue"
)

// CleanupProcessor re-attempts the mandatory destroy steps for a channel: the
// durable row deletion and the platform channel deletion. Both are idempotent
// so re-running a half-finished job is safe.
type CleanupProcessor struct {
	store    voice.Store
	platform voice.Platform
	registry *voice.Registry
	queue    *queue.Queue
	logger   *zap.Logger
}

// NewCleanupProcessor creates a cleanup processor.
func NewCleanupProcessor(store voice.Store, platform voice.Platform, registry *voice.Registry, q *queue.Queue, logger *zap.Logger) *CleanupProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CleanupProcessor{store: store, platform: platform, registry: registry, queue: q, logger: logger}
}

// Process executes one cleanup job.
func (p *CleanupProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeChannelCleanup {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.ChannelCleanupPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := p.store.DeleteChannel(ctx, payload.ChannelID); err != nil {
		return fmt.Errorf("delete channel row: %w", err)
	}
	if p.registry != nil {
		p.registry.Remove(payload.ChannelID)
	}

	exists, err := p.platform.ChannelExists(ctx, payload.ChannelID)
	if err != nil {
		return fmt.Errorf("existence check: %w", err)
	}
	if exists {
		if err := p.platform.DeleteChannel(ctx, payload.ChannelID); err != nil {
			return fmt.Errorf("delete platform channel: %w", err)
		}
	}

	p.logger.Info("channel cleanup completed", zap.String("channel_id", payload.ChannelID))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *CleanupProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("cleanup worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
