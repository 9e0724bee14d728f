package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/telekom/exception-subscriptions/pkg/metrics"
	"github.com/telekom/exception-subscriptions/pkg/subscription"
)

// SubscriptionStore reads and writes the subscription mapping of a project.
// Parsed sets are cached for ttl; writes through the store invalidate the
// cached entry.
type SubscriptionStore struct {
	options OptionStore
	cache   *gocache.Cache
	log     *zap.SugaredLogger
}

// NewSubscriptionStore wraps options. A ttl <= 0 disables caching.
func NewSubscriptionStore(options OptionStore, ttl time.Duration, log *zap.SugaredLogger) *SubscriptionStore {
	s := &SubscriptionStore{
		options: options,
		log:     log.Named("subscriptions"),
	}
	if ttl > 0 {
		s.cache = gocache.New(ttl, 2*ttl)
	}
	return s
}

// Load returns the project's subscriptions. A project without stored
// subscriptions yields an empty set.
func (s *SubscriptionStore) Load(ctx context.Context, project string) (*subscription.Set, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(project); ok {
			metrics.SubscriptionCacheLookups.WithLabelValues("hit").Inc()
			return v.(*subscription.Set), nil
		}
		metrics.SubscriptionCacheLookups.WithLabelValues("miss").Inc()
	}

	raw, err := s.options.Get(ctx, project, subscription.OptionKey)
	var set *subscription.Set
	switch {
	case errors.Is(err, ErrNotFound):
		set, _ = subscription.NewSet()
	case err != nil:
		return nil, fmt.Errorf("load subscriptions for project %s: %w", project, err)
	default:
		set = &subscription.Set{}
		if err := set.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("decode subscriptions for project %s: %w", project, err)
		}
	}

	if s.cache != nil {
		s.cache.SetDefault(project, set)
	}
	return set, nil
}

// Save replaces the project's subscriptions.
func (s *SubscriptionStore) Save(ctx context.Context, project string, set *subscription.Set) error {
	raw, err := set.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode subscriptions for project %s: %w", project, err)
	}
	if err := s.options.Set(ctx, project, subscription.OptionKey, raw); err != nil {
		return err
	}
	s.invalidate(project)
	metrics.SubscriptionsSaved.Inc()
	s.log.Infow("Saved subscriptions", "project", project, "rules", set.Len())
	return nil
}

// Delete removes the project's subscriptions.
func (s *SubscriptionStore) Delete(ctx context.Context, project string) error {
	if err := s.options.Delete(ctx, project, subscription.OptionKey); err != nil {
		return err
	}
	s.invalidate(project)
	s.log.Infow("Deleted subscriptions", "project", project)
	return nil
}

// Ping checks the underlying option store.
func (s *SubscriptionStore) Ping(ctx context.Context) error {
	return s.options.Ping(ctx)
}

func (s *SubscriptionStore) invalidate(project string) {
	if s.cache != nil {
		s.cache.Delete(project)
	}
}
