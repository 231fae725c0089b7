package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
	"github.com/k1s0-platform/system-server-go-configdeploy/internal/infra/config"
)

// mockWriter は kafka.Writer のモック実装。
type mockWriter struct {
	messages []writerMessage
	err      error
	closed   bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...writerMessage) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

const testTopic = "k1s0.system.configdeploy.audit.v1"

func makeTestAuditEntry() *model.AuditLogEntry {
	oldValue, newValue := "100", "200"
	return &model.AuditLogEntry{
		ID:         "audit-uuid-1234",
		EntityType: model.EntityTypeConfiguration,
		EntityID:   "config-uuid-5678",
		Action:     model.DeploymentAuditAction(model.DeploymentActionUpdate),
		OldValue:   &oldValue,
		NewValue:   &newValue,
		UserID:     "operator@example.com",
		Metadata:   map[string]string{"deployment_id": "deploy-1"},
		Timestamp:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	mock := &mockWriter{}
	p := &KafkaPublisher{writer: mock, topic: testTopic}

	entry := makeTestAuditEntry()
	require.NoError(t, p.Publish(context.Background(), entry))

	require.Len(t, mock.messages, 1)
	msg := mock.messages[0]
	assert.Equal(t, testTopic, msg.Topic)
	// パーティションキーが entity_type.entity_id であることを確認
	assert.Equal(t, []byte("Configuration.config-uuid-5678"), msg.Key)
	assert.Equal(t, "Configuration.DEPLOYMENT_UPDATE", msg.Headers["event_type"])

	var got model.AuditLogEntry
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "200", *got.NewValue)
	assert.Equal(t, "deploy-1", got.Metadata["deployment_id"])
}

func TestKafkaPublisher_ConnectionError(t *testing.T) {
	p := &KafkaPublisher{writer: &mockWriter{err: errors.New("broker connection refused")}, topic: testTopic}

	err := p.Publish(context.Background(), makeTestAuditEntry())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker connection refused")
}

func TestKafkaPublisher_CloseAndHealthy(t *testing.T) {
	mock := &mockWriter{}
	p := &KafkaPublisher{writer: mock, topic: testTopic}

	assert.NoError(t, p.Healthy(context.Background()))
	require.NoError(t, p.Close())
	assert.True(t, mock.closed)
}

func TestNewKafkaPublisher_UsesAuditTopic(t *testing.T) {
	p := NewKafkaPublisher(config.KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topics:  config.KafkaTopics{Audit: testTopic},
	})
	assert.Equal(t, testTopic, p.topic)
	assert.NoError(t, p.Close())
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	assert.NoError(t, p.Publish(context.Background(), makeTestAuditEntry()))
	assert.NoError(t, p.Healthy(context.Background()))
	assert.NoError(t, p.Close())
}
