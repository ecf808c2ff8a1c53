//nolint:testpackage // Mock must be in sqs package to access unexported types
package sqs

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/slackmgr/types"
)

// mockSQSClient is a mock implementation of the sqsClient interface for testing.
type mockSQSClient struct {
	getQueueUrlFunc func(ctx context.Context, input *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	sendMessageFunc func(ctx context.Context, input *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)

	mu   sync.Mutex
	sent []*sqs.SendMessageInput
}

func (m *mockSQSClient) GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error) {
	if m.getQueueUrlFunc != nil {
		return m.getQueueUrlFunc(ctx, params, optFns...)
	}
	return &sqs.GetQueueUrlOutput{}, nil
}

func (m *mockSQSClient) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	m.sent = append(m.sent, params)
	m.mu.Unlock()

	if m.sendMessageFunc != nil {
		return m.sendMessageFunc(ctx, params, optFns...)
	}
	return &sqs.SendMessageOutput{}, nil
}

func (m *mockSQSClient) sentMessages() []*sqs.SendMessageInput {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]*sqs.SendMessageInput(nil), m.sent...)
}

// mockLogger is a no-op logger for testing.
type mockLogger struct{}

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithField(_ string, _ any) types.Logger { return m }

//nolint:ireturn // Must return interface to implement types.Logger
func (m *mockLogger) WithFields(_ map[string]any) types.Logger { return m }
func (m *mockLogger) Debug(_ string)                           {}
func (m *mockLogger) Debugf(_ string, _ ...any)                {}
func (m *mockLogger) Info(_ string)                            {}
func (m *mockLogger) Infof(_ string, _ ...any)                 {}
func (m *mockLogger) Warn(_ string)                            {}
func (m *mockLogger) Warnf(_ string, _ ...any)                 {}
func (m *mockLogger) Error(_ string)                           {}
func (m *mockLogger) Errorf(_ string, _ ...any)                {}
func (m *mockLogger) Fatal(_ string)                           {}
func (m *mockLogger) Fatalf(_ string, _ ...any)                {}

//nolint:ireturn // Returns interface for convenience in tests
func newMockLogger() types.Logger {
	return &mockLogger{}
}
