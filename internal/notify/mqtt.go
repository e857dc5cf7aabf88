package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultMQTTTopic is where notifications are published.
const DefaultMQTTTopic = "keepstreak/notifications"

// MQTTPayload is the JSON body published per notification.
type MQTTPayload struct {
	HabitID   int64  `json:"habit_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// FormatMQTTPayload encodes a notification for the broker.
func FormatMQTTPayload(habitID int64, title, message string, ts time.Time) ([]byte, error) {
	return json.Marshal(MQTTPayload{
		HabitID:   habitID,
		Title:     title,
		Message:   message,
		Timestamp: ts.UTC().Format(time.RFC3339),
	})
}

// MQTTDeliverer publishes notifications to an MQTT broker.
type MQTTDeliverer struct {
	client paho.Client
	topic  string
	now    func() time.Time
}

// NewMQTTDeliverer connects to broker and publishes under topic.
func NewMQTTDeliverer(broker, clientID, topic string) (*MQTTDeliverer, error) {
	if topic == "" {
		topic = DefaultMQTTTopic
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return &MQTTDeliverer{client: client, topic: topic, now: time.Now}, nil
}

func (m *MQTTDeliverer) Deliver(_ context.Context, habitID int64, title, message string) error {
	payload, err := FormatMQTTPayload(habitID, title, message, m.now())
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 1 (at-least-once), not retained
	token := m.client.Publish(m.topic, 1, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("mqtt publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish: %w", err)
	}
	return nil
}

// IsConnected reports whether the broker connection is up.
func (m *MQTTDeliverer) IsConnected() bool {
	return m.client.IsConnected()
}

func (m *MQTTDeliverer) Close() error {
	m.client.Disconnect(1000)
	return nil
}
