package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"ipfocuser/pkg/indi"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const publishTimeout = 5 * time.Second

type MQTTConfig struct {
	Broker    string `yaml:"broker"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	ClientID  string `yaml:"client_id"`
	TopicRoot string `yaml:"topic_root"`
}

// ConnectMQTT connects to the broker described by cfg. The broker is told to
// publish "offline" on <root>/status if the connection drops.
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	status := cfg.TopicRoot + "/status"

	opts := mqtt.NewClientOptions()
	opts.SetClientID(cfg.ClientID)
	opts.AddBroker(cfg.Broker)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetWill(status, "offline", 1, true)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		c.Publish(status, 1, true, "online")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %v", token.Error())
	}
	return client, nil
}

// publisher is the part of mqtt.Client used here.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTPublisher mirrors every announced property on a retained topic
// <root>/<device>/<property>. Withdrawn properties clear their topic.
type MQTTPublisher struct {
	client publisher
	root   string
	logger log.FieldLogger
}

func NewMQTTPublisher(client publisher, root string, logger log.FieldLogger) *MQTTPublisher {
	return &MQTTPublisher{client: client, root: root, logger: logger}
}

func (p *MQTTPublisher) Topic(device, property string) string {
	return p.root + "/" + device + "/" + property
}

func (p *MQTTPublisher) Publish(ev indi.Event) {
	var payload []byte
	if ev.Kind != indi.EventDelete {
		var err error
		if payload, err = json.Marshal(ev); err != nil {
			p.logger.Errorf("Failed to encode %s event for %s: %v", ev.Kind, ev.Name, err)
			return
		}
	}

	topic := p.Topic(ev.Device, ev.Name)
	token := p.client.Publish(topic, 1, true, payload)

	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.logger.Warnf("Publishing to %s timed out", topic)
			return
		}
		if err := token.Error(); err != nil {
			p.logger.Errorf("Failed to publish to %s: %v", topic, err)
		}
	}()
}
