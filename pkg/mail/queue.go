/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mail

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/metrics"
)

// sendTimeout bounds a single queued delivery, including the sender's own retries.
const sendTimeout = 2 * time.Minute

var (
	ErrQueueFull    = errors.New("mail queue is full")
	ErrQueueStopped = errors.New("mail queue is shutting down")
)

// QueueItem represents a single email to be sent with retry information
type QueueItem struct {
	Message   Message
	Attempt   int
	CreatedAt time.Time
	NextRetry time.Time
	Succeeded bool
}

// Queue manages asynchronous mail sending with retries
type Queue struct {
	sender           Sender
	queue            chan *QueueItem
	log              *zap.SugaredLogger
	maxRetries       int
	initialBackoffMs int
	wg               sync.WaitGroup
	ctx              context.Context
	cancel           context.CancelFunc
	maxQueueSize     int
}

// NewQueue creates a new mail queue for asynchronous sending
func NewQueue(sender Sender, log *zap.SugaredLogger, maxRetries, initialBackoffMs, maxQueueSize int) *Queue {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if initialBackoffMs <= 0 {
		initialBackoffMs = 10000
	}
	if maxQueueSize <= 0 {
		maxQueueSize = 1000
	}

	log.Infow("Initializing mail queue",
		"maxRetries", maxRetries,
		"initialBackoffMs", initialBackoffMs,
		"maxQueueSize", maxQueueSize)

	ctx, cancel := context.WithCancel(context.Background())

	return &Queue{
		sender:           sender,
		queue:            make(chan *QueueItem, maxQueueSize),
		log:              log,
		maxRetries:       maxRetries,
		initialBackoffMs: initialBackoffMs,
		maxQueueSize:     maxQueueSize,
		ctx:              ctx,
		cancel:           cancel,
	}
}

// Start begins the background worker for processing emails
func (q *Queue) Start() {
	q.wg.Add(1)
	go q.worker()
	q.log.Info("Mail queue worker started")
}

// Enqueue adds an email to the queue for sending
func (q *Queue) Enqueue(msg Message) error {
	if len(msg.To) == 0 {
		q.log.Errorw("Cannot enqueue email: empty receivers list",
			"id", msg.ID,
			"subject", msg.Subject)
		metrics.MailQueueDropped.WithLabelValues(q.sender.GetHost()).Inc()
		return fmt.Errorf("cannot enqueue email with no receivers")
	}

	select {
	case <-q.ctx.Done():
		q.log.Errorw("Cannot enqueue, queue is shutting down", "id", msg.ID)
		metrics.MailQueueDropped.WithLabelValues(q.sender.GetHost()).Inc()
		return ErrQueueStopped
	default:
	}

	now := time.Now()
	item := &QueueItem{
		Message:   msg,
		CreatedAt: now,
		NextRetry: now,
	}

	select {
	case q.queue <- item:
		metrics.MailQueued.WithLabelValues(q.sender.GetHost()).Inc()
		q.log.Debugw("Email queued for sending",
			"id", msg.ID,
			"receivers", len(msg.To),
			"subject", msg.Subject)
		return nil
	case <-q.ctx.Done():
		q.log.Errorw("Cannot enqueue, queue is shutting down", "id", msg.ID)
		metrics.MailQueueDropped.WithLabelValues(q.sender.GetHost()).Inc()
		return ErrQueueStopped
	default:
		metrics.MailQueueDropped.WithLabelValues(q.sender.GetHost()).Inc()
		q.log.Errorw("Mail queue is full, dropping message",
			"id", msg.ID,
			"receivers", len(msg.To),
			"queueSize", q.maxQueueSize)
		return fmt.Errorf("%w (capacity: %d)", ErrQueueFull, q.maxQueueSize)
	}
}

func (q *Queue) worker() {
	defer q.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			q.log.Errorw("panic in mail queue worker recovered", "panic", r)
			metrics.MailFailed.WithLabelValues(q.sender.GetHost()).Inc()
			q.wg.Add(1)
			go q.worker()
		}
	}()

	pendingItems := make([]*QueueItem, 0)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			q.log.Info("Mail queue worker shutting down")
			q.drain(pendingItems)
			return

		case item := <-q.queue:
			if item != nil {
				q.processItem(item)
				if !item.Succeeded && item.Attempt < q.maxRetries {
					pendingItems = append(pendingItems, item)
				}
			}

		case <-ticker.C:
			now := time.Now()
			remaining := make([]*QueueItem, 0, len(pendingItems))
			for _, item := range pendingItems {
				if !item.Succeeded && now.After(item.NextRetry) {
					q.processItem(item)
				}
				if !item.Succeeded && item.Attempt < q.maxRetries {
					remaining = append(remaining, item)
				}
			}
			pendingItems = remaining
		}
	}
}

// processItem attempts to send an email and schedules retry if needed
func (q *Queue) processItem(item *QueueItem) {
	item.Attempt++
	msg := item.Message

	q.log.Infow("Processing queued email",
		"id", msg.ID,
		"attempt", item.Attempt,
		"maxRetries", q.maxRetries,
		"receivers", len(msg.To))

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	err := q.sender.Send(ctx, msg)
	cancel()
	if err == nil {
		q.log.Infow("Queued email sent successfully",
			"id", msg.ID,
			"attempt", item.Attempt,
			"receivers", len(msg.To))
		metrics.MailSent.WithLabelValues(q.sender.GetHost()).Inc()
		item.Succeeded = true
		return
	}

	if item.Attempt < q.maxRetries {
		backoffMs := q.calculateBackoff(item.Attempt)
		item.NextRetry = time.Now().Add(time.Duration(backoffMs) * time.Millisecond)

		q.log.Warnw("Email send failed, scheduling retry",
			"id", msg.ID,
			"attempt", item.Attempt,
			"error", err,
			"retryIn", fmt.Sprintf("%dms", backoffMs),
			"nextRetry", item.NextRetry.Format(time.RFC3339))
		metrics.MailRetryScheduled.WithLabelValues(q.sender.GetHost()).Inc()
		return
	}

	q.log.Errorw("Email send failed after all retries",
		"id", msg.ID,
		"attempts", item.Attempt,
		"error", err,
		"receivers", msg.To,
		"subject", msg.Subject)
	metrics.MailFailed.WithLabelValues(q.sender.GetHost()).Inc()
}

// drain gives queued and pending items one final attempt on shutdown.
func (q *Queue) drain(pending []*QueueItem) {
	for {
		select {
		case item := <-q.queue:
			if item != nil {
				pending = append(pending, item)
			}
			continue
		default:
		}
		break
	}

	q.log.Infow("Processing pending items on shutdown", "count", len(pending))
	for _, item := range pending {
		if !item.Succeeded && item.Attempt < q.maxRetries {
			q.processItem(item)
		}
	}
}

// calculateBackoff doubles initialBackoffMs per attempt, capped at 30 minutes.
func (q *Queue) calculateBackoff(attempt int) int {
	backoffMs := int(float64(q.initialBackoffMs) * math.Pow(2, float64(attempt-1)))
	if backoffMs > 1800000 {
		backoffMs = 1800000
	}
	return backoffMs
}

// Stop gracefully shuts down the queue and waits for all items to be processed
func (q *Queue) Stop(ctx context.Context) error {
	q.log.Info("Stopping mail queue")
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.log.Info("Mail queue stopped gracefully")
		return nil
	case <-ctx.Done():
		q.log.Warnw("Mail queue shutdown timeout, some items may not have been processed")
		return ctx.Err()
	}
}

// Length returns the current number of items in the queue
func (q *Queue) Length() int {
	return len(q.queue)
}
