package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/telekom/exception-subscriptions/pkg/config"
	"github.com/telekom/exception-subscriptions/pkg/event"
	"github.com/telekom/exception-subscriptions/pkg/metrics"
	"github.com/telekom/exception-subscriptions/pkg/notification"
)

// fakeReader serves queued results and blocks once they are used up.
type fakeReader struct {
	mu        sync.Mutex
	queue     []fetchResult
	committed []kafka.Message
	commitErr error
	drained   chan struct{}
	once      sync.Once
}

type fetchResult struct {
	msg kafka.Message
	err error
}

func newFakeReader(results ...fetchResult) *fakeReader {
	return &fakeReader{queue: results, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return next.msg, next.err
	}
	r.mu.Unlock()
	r.once.Do(func() { close(r.drained) })
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.commitErr != nil {
		return r.commitErr
	}
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func (r *fakeReader) offsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []int64
	for _, m := range r.committed {
		out = append(out, m.Offset)
	}
	return out
}

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) PostProcess(ctx context.Context, env event.Envelope) (notification.Result, error) {
	args := m.Called(ctx, env)
	return args.Get(0).(notification.Result), args.Error(1)
}

func message(offset int64, value string) fetchResult {
	return fetchResult{msg: kafka.Message{Offset: offset, Value: []byte(value)}}
}

const envelopeJSON = `{"project":{"id":"1","name":"Shop"},"event":{"id":"e1","culprit":"shop.views"},"is_new":true}`

func runUntilDrained(t *testing.T, c *Consumer, r *fakeReader) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-r.drained:
	case err := <-done:
		cancel()
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the reader")
	}
	cancel()
	return <-done
}

func newTestConsumer(t *testing.T, r MessageReader, p EventProcessor) *Consumer {
	c := NewConsumerWithReader(r, p, zaptest.NewLogger(t).Sugar())
	c.backoff = time.Millisecond
	return c
}

func TestConsumerProcessesAndCommits(t *testing.T) {
	proc := &mockProcessor{}
	proc.On("PostProcess", mock.Anything, mock.MatchedBy(func(env event.Envelope) bool {
		return env.Project.ID == "1" && env.Event.Culprit == "shop.views"
	})).Return(notification.Result{Notified: true, Reason: notification.ReasonSent}, nil).Twice()

	r := newFakeReader(message(1, envelopeJSON), message(2, envelopeJSON))
	require.NoError(t, runUntilDrained(t, newTestConsumer(t, r, proc), r))

	assert.Equal(t, []int64{1, 2}, r.offsets())
	proc.AssertExpectations(t)
}

func TestConsumerCommitsMalformedMessages(t *testing.T) {
	before := testutil.ToFloat64(metrics.EventsRejected.WithLabelValues(source))

	proc := &mockProcessor{}
	r := newFakeReader(
		message(1, `not json`),
		message(2, `{"project":{"id":""},"event":{"id":"e1"}}`),
	)
	require.NoError(t, runUntilDrained(t, newTestConsumer(t, r, proc), r))

	assert.Equal(t, []int64{1, 2}, r.offsets())
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.EventsRejected.WithLabelValues(source)))
	proc.AssertNotCalled(t, "PostProcess", mock.Anything, mock.Anything)
}

func TestConsumerRetriesProcessing(t *testing.T) {
	proc := &mockProcessor{}
	proc.On("PostProcess", mock.Anything, mock.Anything).Return(notification.Result{}, errors.New("store down")).Once()
	proc.On("PostProcess", mock.Anything, mock.Anything).Return(notification.Result{Reason: notification.ReasonNoMatches}, nil).Once()

	r := newFakeReader(message(7, envelopeJSON))
	require.NoError(t, runUntilDrained(t, newTestConsumer(t, r, proc), r))

	assert.Equal(t, []int64{7}, r.offsets())
	proc.AssertNumberOfCalls(t, "PostProcess", 2)
}

func TestConsumerGivesUpAfterMaxAttempts(t *testing.T) {
	proc := &mockProcessor{}
	proc.On("PostProcess", mock.Anything, mock.Anything).Return(notification.Result{}, errors.New("store down"))

	r := newFakeReader(message(3, envelopeJSON))
	require.NoError(t, runUntilDrained(t, newTestConsumer(t, r, proc), r))

	assert.Equal(t, []int64{3}, r.offsets())
	proc.AssertNumberOfCalls(t, "PostProcess", defaultMaxAttempts)
}

func TestConsumerRetriesFetchErrors(t *testing.T) {
	before := testutil.ToFloat64(metrics.IngestErrors.WithLabelValues("broker"))

	proc := &mockProcessor{}
	proc.On("PostProcess", mock.Anything, mock.Anything).Return(notification.Result{}, nil)

	r := newFakeReader(
		fetchResult{err: errors.New("leader not available on broker 1")},
		message(4, envelopeJSON),
	)
	require.NoError(t, runUntilDrained(t, newTestConsumer(t, r, proc), r))

	assert.Equal(t, []int64{4}, r.offsets())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.IngestErrors.WithLabelValues("broker")))
}

func TestConsumerCommitFailure(t *testing.T) {
	proc := &mockProcessor{}
	proc.On("PostProcess", mock.Anything, mock.Anything).Return(notification.Result{}, nil)

	r := newFakeReader(message(5, envelopeJSON))
	r.commitErr = errors.New("rebalance in progress")

	err := runUntilDrained(t, newTestConsumer(t, r, proc), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rebalance in progress")
}

func TestNewConsumerValidation(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()

	_, err := NewConsumer(config.Kafka{Topic: "events"}, &mockProcessor{}, log)
	assert.Error(t, err)

	_, err = NewConsumer(config.Kafka{Brokers: []string{"localhost:9092"}}, &mockProcessor{}, log)
	assert.Error(t, err)

	_, err = NewConsumer(config.Kafka{
		Brokers: []string{"localhost:9092"},
		Topic:   "events",
		SASL:    config.KafkaSASL{Mechanism: "GSSAPI"},
	}, &mockProcessor{}, log)
	assert.Error(t, err)

	c, err := NewConsumer(config.Kafka{
		Brokers: []string{"localhost:9092"},
		Topic:   "events",
		GroupID: "test",
	}, &mockProcessor{}, log)
	require.NoError(t, err)
	assert.NoError(t, c.Close())
}
