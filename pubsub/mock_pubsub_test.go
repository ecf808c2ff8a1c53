package pubsub

import (
	"context"
	"sync"
	"sync/atomic"

	"cloud.google.com/go/pubsub/v2"
	"github.com/slackmgr/types"
)

// fakeTopicClient implements topicClient for testing.
type fakeTopicClient struct {
	publisherFunc  func(topic string, settings publishSettings) topicPublisher
	defaultPub     topicPublisher
	publisherCalls []string
	mu             sync.Mutex
}

func newFakeTopicClient() *fakeTopicClient {
	return &fakeTopicClient{}
}

//nolint:ireturn // Returns interface required by topicClient interface
func (m *fakeTopicClient) Publisher(topic string, settings publishSettings) topicPublisher {
	m.mu.Lock()
	m.publisherCalls = append(m.publisherCalls, topic)
	m.mu.Unlock()

	if m.publisherFunc != nil {
		return m.publisherFunc(topic, settings)
	}

	return m.defaultPub
}

func (m *fakeTopicClient) calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.publisherCalls...)
}

// mockPublisher implements topicPublisher for testing.
type mockPublisher struct {
	publishFunc       func(ctx context.Context, msg *pubsub.Message) publishResult
	stopCalled        atomic.Bool
	settings          publishSettings
	publishedMessages []*pubsub.Message
	resumedKeys       []string
	mu                sync.Mutex
}

func newMockPublisher(settings publishSettings) *mockPublisher {
	return &mockPublisher{settings: settings}
}

//nolint:ireturn // Returns interface required by topicPublisher interface
func (m *mockPublisher) Publish(ctx context.Context, msg *pubsub.Message) publishResult {
	m.mu.Lock()
	m.publishedMessages = append(m.publishedMessages, msg)
	m.mu.Unlock()

	if m.publishFunc != nil {
		return m.publishFunc(ctx, msg)
	}
	return &mockPublishResult{}
}

func (m *mockPublisher) ResumePublish(orderingKey string) {
	m.mu.Lock()
	m.resumedKeys = append(m.resumedKeys, orderingKey)
	m.mu.Unlock()
}

func (m *mockPublisher) Stop() {
	m.stopCalled.Store(true)
}

func (m *mockPublisher) messages() []*pubsub.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*pubsub.Message(nil), m.publishedMessages...)
}

// mockPublishResult implements publishResult for testing.
type mockPublishResult struct {
	serverID string
	err      error
}

func (m *mockPublishResult) Get(_ context.Context) (string, error) {
	return m.serverID, m.err
}

// mockLogger implements types.Logger for testing. Derived loggers share the
// parent's log buffers.
type mockLogger struct {
	debugLogs []string
	fields    map[string]any
	mu        sync.Mutex
}

func newMockLogger() *mockLogger {
	return &mockLogger{
		fields: make(map[string]any),
	}
}

func (m *mockLogger) Debug(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugLogs = append(m.debugLogs, msg)
}

func (m *mockLogger) Debugf(format string, _ ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugLogs = append(m.debugLogs, format)
}

func (m *mockLogger) Info(_ string) {}

func (m *mockLogger) Infof(_ string, _ ...any) {}

func (m *mockLogger) Warn(_ string) {}

func (m *mockLogger) Warnf(_ string, _ ...any) {}

func (m *mockLogger) Error(_ string) {}

func (m *mockLogger) Errorf(_ string, _ ...any) {}

func (m *mockLogger) Fatal(_ string) {}

func (m *mockLogger) Fatalf(_ string, _ ...any) {}

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithField(key string, value any) types.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fields[key] = value
	return m
}

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithFields(fields map[string]any) types.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range fields {
		m.fields[k] = v
	}
	return m
}

func (m *mockLogger) debugCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.debugLogs)
}
