// Package notify forwards dispense events to outside listeners.
package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"barrobot/internal/dispense"
)

// Message is the published payload.
type Message struct {
	RunID  string         `json:"run_id"`
	Recipe string         `json:"recipe"`
	At     time.Time      `json:"at"`
	Event  dispense.Event `json:"event"`
}

// Publisher receives every event of every dispense.
type Publisher interface {
	Publish(m Message) error
	Close()
}

// Nop drops everything.
type Nop struct{}

func (Nop) Publish(Message) error { return nil }
func (Nop) Close()                {}

var errPublishTimeout = errors.New("mqtt publish timed out")

// MQTT publishes each message as JSON on a single topic.
type MQTT struct {
	topic string
	send  func(topic string, payload []byte) error
	close func()
	log   *zap.Logger
}

// MQTTOptions configures NewMQTT.
type MQTTOptions struct {
	Broker   string
	ClientID string
	Topic    string
	Timeout  time.Duration
}

// NewMQTT connects to the broker. The client reconnects on its own; a
// publish while disconnected fails and is reported to the caller.
func NewMQTT(o MQTTOptions, log *zap.Logger) (*MQTT, error) {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.AutoReconnect = true
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", zap.Error(err))
	}

	c := mqtt.NewClient(opts)
	if t := c.Connect(); !t.WaitTimeout(o.Timeout) {
		return nil, fmt.Errorf("connect %s: timed out", o.Broker)
	} else if t.Error() != nil {
		return nil, fmt.Errorf("connect %s: %w", o.Broker, t.Error())
	}
	log.Info("mqtt connected", zap.String("broker", o.Broker), zap.String("topic", o.Topic))

	send := func(topic string, payload []byte) error {
		t := c.Publish(topic, 1, false, payload)
		if !t.WaitTimeout(o.Timeout) {
			return errPublishTimeout
		}
		return t.Error()
	}
	return newMQTT(o.Topic, send, func() { c.Disconnect(250) }, log), nil
}

func newMQTT(topic string, send func(string, []byte) error, closeFn func(), log *zap.Logger) *MQTT {
	return &MQTT{topic: topic, send: send, close: closeFn, log: log}
}

func (p *MQTT) Publish(m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := p.send(p.topic, payload); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *MQTT) Close() {
	if p.close != nil {
		p.close()
	}
}
