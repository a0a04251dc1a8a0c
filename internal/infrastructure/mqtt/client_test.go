package mqtt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/config"
)

const testBroker = "127.0.0.1:1883"

// testConfig returns a valid MQTT configuration pointing at a local broker.
func testConfig(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// connectOrSkip connects to the local broker, skipping the test when none is running.
func connectOrSkip(t *testing.T, clientID string) *Client {
	t.Helper()

	conn, err := net.DialTimeout("tcp", testBroker, 500*time.Millisecond)
	if err != nil {
		t.Skipf("no MQTT broker at %s: %v", testBroker, err)
	}
	conn.Close()

	client, err := Connect(testConfig(clientID))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// disconnectedClient returns a client that was never connected.
func disconnectedClient() *Client {
	return &Client{subscriptions: make(map[string]subscription)}
}

// =============================================================================
// Topic builders
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ServoCommand", topics.ServoCommand("front-door"), "doorkeeper/command/servo/front-door"},
		{"DoorState", topics.DoorState("front-door"), "doorkeeper/state/door/front-door"},
		{"DoorbellEvent", topics.DoorbellEvent("porch"), "doorkeeper/event/doorbell/porch"},
		{"AllDoorbellEvents", topics.AllDoorbellEvents(), "doorkeeper/event/doorbell/+"},
		{"SystemStatus", topics.SystemStatus(), "doorkeeper/system/status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLastSegment(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"doorkeeper/event/doorbell/porch", "porch"},
		{"porch", "porch"},
		{"doorkeeper/event/doorbell/", ""},
	}

	for _, tt := range tests {
		if got := LastSegment(tt.topic); got != tt.want {
			t.Errorf("LastSegment(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("doorkeeper-core")
	if !strings.Contains(online, `"status":"online"`) || strings.Contains(online, "reason") {
		t.Errorf("online payload = %s", online)
	}

	offline := buildOfflinePayload("doorkeeper-core")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload = %s", offline)
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig("doorkeeper-opts")
	cfg.Broker.TLS = true
	cfg.Auth = config.MQTTAuthConfig{Username: "door", Password: "secret"}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want [ssl://127.0.0.1:1883]", opts.Servers)
	}
	if opts.ClientID != "doorkeeper-opts" {
		t.Errorf("ClientID = %q, want %q", opts.ClientID, "doorkeeper-opts")
	}
	if opts.Username != "door" {
		t.Errorf("Username = %q, want %q", opts.Username, "door")
	}
	if opts.TLSConfig == nil {
		t.Error("TLSConfig should be set when TLS is enabled")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect should be enabled")
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
}

// =============================================================================
// Validation (no broker required)
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	client := disconnectedClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("x"), 1, ErrInvalidTopic},
		{"invalid qos", "doorkeeper/test", []byte("x"), 3, ErrInvalidQoS},
		{"oversized payload", "doorkeeper/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"disconnected", "doorkeeper/test", []byte("x"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := disconnectedClient()
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		wantErr error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", "doorkeeper/#", 3, handler, ErrInvalidQoS},
		{"nil handler", "doorkeeper/#", 1, nil, ErrSubscribeFailed},
		{"disconnected", "doorkeeper/#", 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if n := len(trackedTopics(client)); n != 0 {
		t.Errorf("tracked subscriptions = %d, want 0 after failed subscribes", n)
	}
}

// pendingToken never completes.
type pendingToken struct{}

func (pendingToken) Wait() bool                     { return false }
func (pendingToken) WaitTimeout(time.Duration) bool { return false }
func (pendingToken) Done() <-chan struct{}          { return nil }
func (pendingToken) Error() error                   { return nil }

// stalledBroker reports a live connection but never acknowledges anything.
type stalledBroker struct {
	pahomqtt.Client
}

func (stalledBroker) IsConnected() bool { return true }

func (stalledBroker) Publish(string, byte, bool, any) pahomqtt.Token { return pendingToken{} }

func (stalledBroker) Subscribe(string, byte, pahomqtt.MessageHandler) pahomqtt.Token {
	return pendingToken{}
}

func (stalledBroker) Unsubscribe(...string) pahomqtt.Token { return pendingToken{} }

func TestOperations_TimeOut(t *testing.T) {
	client := &Client{
		client:        stalledBroker{},
		connected:     true,
		subscriptions: make(map[string]subscription),
	}
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		op      func() error
		wantErr error
	}{
		{"publish", func() error { return client.PublishCommand("doorkeeper/command/servo/front", []byte("max")) }, ErrPublishFailed},
		{"subscribe", func() error { return client.Subscribe(Topics{}.AllDoorbellEvents(), 1, handler) }, ErrSubscribeFailed},
		{"unsubscribe", func() error { return client.Unsubscribe(Topics{}.AllDoorbellEvents()) }, ErrUnsubscribeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrTimeout) {
				t.Errorf("error = %v, want %v and ErrTimeout", err, tt.wantErr)
			}
		})
	}

	if n := len(trackedTopics(client)); n != 0 {
		t.Errorf("tracked subscriptions = %d, want 0 after timed out subscribe", n)
	}
}

// trackedTopics returns the topics restored on reconnect.
func trackedTopics(c *Client) []string {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	topics := make([]string, 0, len(c.subscriptions))
	for topic := range c.subscriptions {
		topics = append(topics, topic)
	}
	return topics
}

func TestUnsubscribe_Validation(t *testing.T) {
	client := disconnectedClient()

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("doorkeeper/#"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	client := disconnectedClient()

	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestCloseNil(t *testing.T) {
	client := &Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v, want nil", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
}

func TestWrapHandler_RecoversPanics(t *testing.T) {
	client := disconnectedClient()
	logger := &recordingLogger{}
	client.SetLogger(logger)

	wrapped := client.wrapHandler(func(string, []byte) error {
		panic("boom")
	})
	wrapped(nil, fakeMessage{topic: "doorkeeper/event/doorbell/porch"})

	wrapped = client.wrapHandler(func(string, []byte) error {
		return fmt.Errorf("bad payload")
	})
	wrapped(nil, fakeMessage{topic: "doorkeeper/event/doorbell/porch"})

	if logger.errors != 1 {
		t.Errorf("Error() calls = %d, want 1", logger.errors)
	}
	if logger.warns != 1 {
		t.Errorf("Warn() calls = %d, want 1", logger.warns)
	}
}

// =============================================================================
// Broker tests (skipped without a local broker)
// =============================================================================

func TestConnect(t *testing.T) {
	client := connectOrSkip(t, "doorkeeper-test-connect")

	if !client.IsConnected() {
		t.Error("IsConnected() = false, want true")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestPublishSubscribeRoundtrip(t *testing.T) {
	sub := connectOrSkip(t, "doorkeeper-test-sub")
	pub := connectOrSkip(t, "doorkeeper-test-pub")

	received := make(chan string, 1)
	var once sync.Once

	err := sub.Subscribe(Topics{}.AllDoorbellEvents(), 1, func(topic string, payload []byte) error {
		once.Do(func() { received <- LastSegment(topic) + ":" + string(payload) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if got := trackedTopics(sub); len(got) != 1 || got[0] != Topics{}.AllDoorbellEvents() {
		t.Errorf("tracked subscriptions = %v, want [%s]", got, Topics{}.AllDoorbellEvents())
	}

	// Give the broker time to register the subscription.
	time.Sleep(100 * time.Millisecond)

	if err := pub.PublishCommand(Topics{}.DoorbellEvent("porch"), []byte(`{"button":"pushed"}`)); err != nil {
		t.Fatalf("PublishCommand() error = %v", err)
	}

	select {
	case got := <-received:
		if got != `porch:{"button":"pushed"}` {
			t.Errorf("received = %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for doorbell message")
	}

	if err := sub.Unsubscribe(Topics{}.AllDoorbellEvents()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if n := len(trackedTopics(sub)); n != 0 {
		t.Errorf("tracked subscriptions = %d, want 0", n)
	}
}

func TestPublishRetainedDoorState(t *testing.T) {
	client := connectOrSkip(t, "doorkeeper-test-retained")

	if err := client.PublishRetained(Topics{}.DoorState("test-door"), []byte(`{"state":"open"}`)); err != nil {
		t.Errorf("PublishRetained() error = %v", err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

type recordingLogger struct {
	mu     sync.Mutex
	errors int
	warns  int
}

func (l *recordingLogger) Error(string, ...any) {
	l.mu.Lock()
	l.errors++
	l.mu.Unlock()
}

func (l *recordingLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

// fakeMessage implements pahomqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}
