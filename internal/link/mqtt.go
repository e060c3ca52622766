package link

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"avl-svr/internal/pipeline"
)

// MQTT publishes tracking to <topic>/<imei> and device events to
// <topic>/<imei>/device, QoS 1.
type MQTT struct {
	client mqtt.Client
	topic  string
	logger *slog.Logger
}

func NewMQTT(broker, clientID, topic string, lg *slog.Logger) (*MQTT, error) {
	m := &MQTT{topic: topic, logger: lg.With("component", "mqtt")}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		m.logger.Info("mqtt: connected", "broker", broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.logger.Warn("mqtt: connection lost", "err", err)
	})

	m.client = mqtt.NewClient(opts)
	token := m.client.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return m, nil
}

func (m *MQTT) publish(ctx context.Context, topic string, b []byte) error {
	token := m.client.Publish(topic, 1, false, b)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MQTT) Tracking(ctx context.Context, tr *pipeline.TrackingObject) error {
	b, err := encodeTracking(tr)
	if err != nil {
		return err
	}
	return m.publish(ctx, m.topic+"/"+tr.IMEI, b)
}

func (m *MQTT) Device(ctx context.Context, info DeviceInfo) error {
	b, err := encodeDevice(info)
	if err != nil {
		return err
	}
	return m.publish(ctx, m.topic+"/"+info.IMEI+"/device", b)
}

func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
