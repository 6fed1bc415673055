package notify

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher is the part of the MQTT client the notifier needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// MQTTNotifier publishes events as JSON to <topic>/<record_id>.
type MQTTNotifier struct {
	pub   Publisher
	topic string
	qos   byte
}

func NewMQTTNotifier(pub Publisher, topic string, qos byte) *MQTTNotifier {
	return &MQTTNotifier{pub: pub, topic: topic, qos: qos}
}

func (n *MQTTNotifier) Notify(_ context.Context, ev StatusChangedEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return n.pub.Publish(n.topic+"/"+ev.RecordID, n.qos, false, payload)
}
