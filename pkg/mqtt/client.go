package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/driverfleet/driverfleet/pkg/log"
)

const reconnectBackoff = 3 * time.Second

var errNotStarted = errors.New("mqtt client not started")

// pahoClient implements Client on top of an autopaho connection manager.
type pahoClient struct {
	cfg    *ClientConfig
	routes *router
	cm     *autopaho.ConnectionManager

	connected atomic.Bool
}

// NewClient validates cfg and returns a Client that connects once Start is called.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mqtt config is required")
	}

	setDefaultConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &pahoClient{
		cfg:    cfg,
		routes: newRouter(),
	}, nil
}

func (c *pahoClient) Start(ctx context.Context) error {
	connCfg, err := c.connectionConfig()
	if err != nil {
		return err
	}

	log.Info("Connecting to MQTT broker", "broker", c.cfg.BrokerURL, "clientID", c.cfg.ClientID)

	cm, err := autopaho.NewConnection(ctx, connCfg)
	if err != nil {
		return fmt.Errorf("failed to start mqtt connection: %w", err)
	}
	c.cm = cm
	return nil
}

func (c *pahoClient) connectionConfig() (autopaho.ClientConfig, error) {
	broker, err := url.Parse(c.cfg.BrokerURL)
	if err != nil {
		return autopaho.ClientConfig{}, fmt.Errorf("invalid broker url: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(reconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		OnConnectionUp:                c.onConnectionUp,
		OnConnectError:                c.onConnectError,
		ClientConfig: paho.ClientConfig{
			ClientID:           c.cfg.ClientID,
			OnClientError:      c.onClientError,
			OnServerDisconnect: c.onServerDisconnect,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				c.onPublish,
			},
		},
	}
	if c.cfg.Password != "" {
		cfg.ConnectPassword = []byte(c.cfg.Password)
	}
	if c.cfg.InsecureSkipVerify {
		cfg.TlsCfg = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed brokers
	}
	return cfg, nil
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	if c.cm == nil {
		return
	}
	if err := c.cm.Disconnect(ctx); err != nil {
		log.Warn("MQTT disconnect did not complete", "error", err)
	}
	c.connected.Store(false)
	log.Info("Disconnected from MQTT broker", "broker", c.cfg.BrokerURL)
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	if c.cm == nil {
		return errNotStarted
	}

	_, err := c.cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(qos),
		Retain:  retain,
		Payload: payload,
	})
	return err
}

// Subscribe registers handler before the SUBSCRIBE is sent. When sending fails the route is
// kept and the subscription is retried on the next connection.
func (c *pahoClient) Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error {
	if err := validateFilter(filter); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("no handler for topic filter %q", filter)
	}
	if c.cm == nil {
		return errNotStarted
	}

	c.routes.add(filter, qos, handler)

	if _, err := c.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: byte(qos)}},
	}); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}

	log.Debug("Subscribed", "filter", filter, "qos", qos)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, filter string) error {
	if c.cm == nil {
		return errNotStarted
	}
	if !c.routes.remove(filter) {
		return nil
	}

	_, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{filter}})
	return err
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return errNotStarted
	}
	return c.cm.AwaitConnection(ctx)
}

func (c *pahoClient) IsConnected() bool {
	return c.connected.Load()
}

// onConnectionUp restores every route in a single SUBSCRIBE.
func (c *pahoClient) onConnectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.connected.Store(true)

	subs := c.routes.subscriptions()
	log.Info("MQTT connection up", "broker", c.cfg.BrokerURL, "subscriptions", len(subs))
	if len(subs) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectTimeout)
	defer cancel()
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: subs}); err != nil {
		log.Error(err, "Failed to restore subscriptions", "count", len(subs))
	}
}

func (c *pahoClient) onPublish(p paho.PublishReceived) (bool, error) {
	msg := Message{
		Topic:    p.Packet.Topic,
		Payload:  p.Packet.Payload,
		Retained: p.Packet.Retain,
	}
	if c.routes.dispatch(context.Background(), msg) == 0 {
		log.Debug("No subscription for received message", "topic", msg.Topic)
	}
	return true, nil
}

func (c *pahoClient) onConnectError(err error) {
	c.connected.Store(false)
	log.Error(err, "MQTT connection attempt failed", "broker", c.cfg.BrokerURL, "retryIn", reconnectBackoff)
}

func (c *pahoClient) onClientError(err error) {
	c.connected.Store(false)
	log.Error(err, "MQTT client error")
}

func (c *pahoClient) onServerDisconnect(d *paho.Disconnect) {
	c.connected.Store(false)
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	log.Warn("MQTT broker closed the connection", "code", d.ReasonCode, "reason", reason)
}
