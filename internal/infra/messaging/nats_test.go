package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k1s0-platform/system-server-go-configdeploy/internal/domain/model"
)

// fakeNATSConn は失敗回数を指定できる NATS 接続のフェイク。
type fakeNATSConn struct {
	failures  int
	failWith  error
	attempts  int
	published []*nats.Msg
	connected bool
	drained   bool
}

func (f *fakeNATSConn) PublishMsg(msg *nats.Msg) error {
	f.attempts++
	if f.attempts <= f.failures {
		return f.failWith
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeNATSConn) IsConnected() bool { return f.connected }

func (f *fakeNATSConn) Drain() error {
	f.drained = true
	return nil
}

func newTestNATSPublisher(conn *fakeNATSConn) *NATSPublisher {
	p := newNATSPublisher(conn, "k1s0.system.configdeploy.audit")
	p.retryWait = time.Millisecond
	return p
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := &fakeNATSConn{connected: true}
	p := newTestNATSPublisher(conn)

	entry := makeTestAuditEntry()
	require.NoError(t, p.Publish(context.Background(), entry))

	require.Len(t, conn.published, 1)
	msg := conn.published[0]
	assert.Equal(t, "k1s0.system.configdeploy.audit.Configuration.DEPLOYMENT_UPDATE", msg.Subject)
	assert.Equal(t, entry.ID, msg.Header.Get("Nats-Msg-Id"))
	assert.Equal(t, "Configuration.config-uuid-5678", msg.Header.Get("Event-Key"))

	var got model.AuditLogEntry
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, entry.EntityID, got.EntityID)
}

func TestNATSPublisher_RetriesTransientFailure(t *testing.T) {
	conn := &fakeNATSConn{connected: true, failures: 2, failWith: nats.ErrTimeout}
	p := newTestNATSPublisher(conn)

	require.NoError(t, p.Publish(context.Background(), makeTestAuditEntry()))

	assert.Equal(t, 3, conn.attempts)
	assert.Len(t, conn.published, 1)
}

func TestNATSPublisher_GivesUpAfterMaxRetries(t *testing.T) {
	conn := &fakeNATSConn{connected: true, failures: 10, failWith: nats.ErrTimeout}
	p := newTestNATSPublisher(conn)

	err := p.Publish(context.Background(), makeTestAuditEntry())

	assert.ErrorIs(t, err, nats.ErrTimeout)
	assert.Equal(t, 4, conn.attempts)
}

func TestNATSPublisher_ClosedConnectionIsPermanent(t *testing.T) {
	conn := &fakeNATSConn{failures: 10, failWith: nats.ErrConnectionClosed}
	p := newTestNATSPublisher(conn)

	err := p.Publish(context.Background(), makeTestAuditEntry())

	assert.True(t, errors.Is(err, nats.ErrConnectionClosed))
	assert.Equal(t, 1, conn.attempts)
}

func TestNATSPublisher_HealthyAndClose(t *testing.T) {
	conn := &fakeNATSConn{connected: true}
	p := newTestNATSPublisher(conn)
	assert.NoError(t, p.Healthy(context.Background()))

	conn.connected = false
	assert.Error(t, p.Healthy(context.Background()))

	require.NoError(t, p.Close())
	assert.True(t, conn.drained)
}
