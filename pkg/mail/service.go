// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/config"
)

// Service delivers messages either directly through the Sender or, when
// configured asynchronous, through a background Queue.
type Service struct {
	sender Sender
	cfg    config.Mail
	logger *zap.SugaredLogger

	mu    sync.RWMutex
	queue *Queue
}

// NewService creates a mail Service backed by an SMTP sender built from cfg.
func NewService(cfg config.Mail, logger *zap.SugaredLogger) *Service {
	return NewServiceWithSender(NewSender(cfg, logger), cfg, logger)
}

// NewServiceWithSender creates a mail Service using the given sender.
func NewServiceWithSender(sender Sender, cfg config.Mail, logger *zap.SugaredLogger) *Service {
	return &Service{
		sender: sender,
		cfg:    cfg,
		logger: logger.Named("mail-service"),
	}
}

// Start launches the queue worker when asynchronous delivery is enabled.
// It is a no-op otherwise.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Async || s.cfg.Disabled || s.queue != nil {
		return
	}
	s.queue = NewQueue(s.sender, s.logger, s.cfg.RetryCount, s.cfg.RetryBackoffMs, s.cfg.QueueSize)
	s.queue.Start()

	s.logger.Infow("Mail queue initialized and started",
		"host", s.sender.GetHost(),
		"retryCount", s.cfg.RetryCount,
		"retryBackoffMs", s.cfg.RetryBackoffMs,
		"queueSize", s.cfg.QueueSize)
}

// Deliver sends msg. With an active queue the message is enqueued and only
// enqueue failures are returned.
func (s *Service) Deliver(ctx context.Context, msg Message) error {
	if s.cfg.Disabled {
		s.logger.Debugw("Mail delivery disabled, dropping email",
			"id", msg.ID,
			"recipients", len(msg.To))
		return nil
	}
	if msg.ID == "" {
		msg.ID = NewMessageID()
	}

	s.mu.RLock()
	queue := s.queue
	s.mu.RUnlock()

	if queue != nil {
		return queue.Enqueue(msg)
	}
	return s.sender.Send(ctx, msg)
}

// IsEnabled reports whether the service will attempt delivery at all.
func (s *Service) IsEnabled() bool {
	return !s.cfg.Disabled
}

// IsAsync reports whether messages currently go through the queue.
func (s *Service) IsAsync() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queue != nil
}

// Stop gracefully shuts down the queue, if any.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.queue != nil {
		s.logger.Info("Stopping mail service")
		err := s.queue.Stop(ctx)
		s.queue = nil
		return err
	}
	return nil
}
