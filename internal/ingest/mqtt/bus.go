// Package mqtt implements the message-bus subscriber described in §4.8:
// a reconnecting MQTT 3.1.1 client that turns zone create/update/delete
// notifications into reconcile intents.
package mqtt

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
)

// Handler is invoked for every validly-parsed message. Implementations
// must not block on gate acquisition within the MQTT client's own
// callback goroutine beyond a bounded amount of time — the bus package
// hands intents off via a buffered channel so a slow reconciler cannot
// stall paho's internal dispatch loop.
type Handler func(zoneName string)

// message is the minimal bus payload (§4.8): "at least { name: string
// }" — other fields are ignored.
type message struct {
	Name string `json:"name"`
}

// Config configures the bus subscriber.
type Config struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	TopicPrefix    string
	QoS            byte
	KeepAlive      int
	ReconnectDelay time.Duration
	Handler        Handler
	Logger         *slog.Logger

	// OnConnectionChange, if set, is invoked with the new connectivity
	// state on every connect/disconnect, so callers can mirror it into
	// ApplicationState.message_bus_connected (§3) without this package
	// depending on the status package.
	OnConnectionChange func(connected bool)
}

// Bus wraps a paho client with reconnect-with-backoff (§4.8: starts at
// reconnect_delay, doubles per failure up to 60s) and a bounded
// callback-to-core handoff channel.
type Bus struct {
	client    paho.Client
	cfg       Config
	logger    *slog.Logger
	intents   chan domain.SyncIntent
	done      chan struct{}
	connected atomic.Bool
}

const intentBufferSize = 256

// New builds a Bus and its underlying paho client but does not connect.
func New(cfg Config) *Bus {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{cfg: cfg, logger: logger, intents: make(chan domain.SyncIntent, intentBufferSize), done: make(chan struct{})}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetKeepAlive(time.Duration(cfg.KeepAlive) * time.Second).
		SetAutoReconnect(false). // we drive reconnect ourselves, with capped exponential backoff
		SetConnectionLostHandler(b.onConnectionLost).
		SetOnConnectHandler(b.onConnect)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b.client = paho.NewClient(opts)
	return b
}

// Start connects with reconnect-with-backoff running in the background
// and launches the intent-draining goroutine that calls cfg.Handler.
// It returns immediately; connection happens asynchronously.
func (b *Bus) Start() {
	go b.drainIntents()
	go b.connectLoop()
}

// Stop disconnects the client and halts the drain goroutine. In-flight
// messages are not drained (§5: "the next process reconciles on
// startup").
func (b *Bus) Stop() {
	close(b.done)
	if b.client.IsConnected() {
		b.client.Disconnect(250)
	}
	b.connected.Store(false)
}

// Connected reports live broker connectivity, for the /mqtt/status
// endpoint (§6).
func (b *Bus) Connected() bool {
	return b.connected.Load()
}

func (b *Bus) notifyConnectionChange(connected bool) {
	if b.cfg.OnConnectionChange != nil {
		b.cfg.OnConnectionChange(connected)
	}
}

func (b *Bus) connectLoop() {
	delay := b.cfg.ReconnectDelay
	if delay <= 0 {
		delay = time.Second
	}
	const maxDelay = 60 * time.Second

	for {
		select {
		case <-b.done:
			return
		default:
		}

		token := b.client.Connect()
		token.Wait()
		if token.Error() == nil {
			return // onConnect subscribes; connectionLostHandler re-triggers reconnect
		}

		b.logger.Warn("mqtt connect failed, retrying", "error", token.Error(), "delay", delay)
		select {
		case <-b.done:
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (b *Bus) onConnect(c paho.Client) {
	b.connected.Store(true)
	b.notifyConnectionChange(true)
	b.logger.Info("mqtt connected", "broker", b.cfg.BrokerURL)

	topic := strings.TrimRight(b.cfg.TopicPrefix, "/") + "/+/+"
	if token := c.Subscribe(topic, b.cfg.QoS, b.onMessage); token.Wait() && token.Error() != nil {
		b.logger.Error("mqtt subscribe failed", "topic", topic, "error", token.Error())
	}
}

func (b *Bus) onConnectionLost(c paho.Client, err error) {
	b.connected.Store(false)
	b.notifyConnectionChange(false)
	b.logger.Warn("mqtt connection lost, reconnecting", "error", err)
	go b.connectLoop()
}

var validEvents = map[string]bool{"created": true, "updated": true, "deleted": true}

// topicZoneAndEvent splits a "<prefix>/<zone>/<event>" topic, unescaping
// the zone segment (it travels URL-safe, per §4.8). ok is false if the
// topic has the wrong shape or an unrecognized event.
func topicZoneAndEvent(prefix, topic string) (zone, event string, ok bool) {
	prefixParts := strings.Split(strings.TrimRight(prefix, "/"), "/")
	parts := strings.Split(topic, "/")
	if len(parts) != len(prefixParts)+2 {
		return "", "", false
	}
	zoneRaw := parts[len(prefixParts)]
	event = parts[len(prefixParts)+1]
	if !validEvents[event] {
		return "", "", false
	}
	zone, err := url.PathUnescape(zoneRaw)
	if err != nil {
		return "", "", false
	}
	return zone, event, true
}

// onMessage parses the topic and payload and hands the zone name off via
// the buffered channel. It never calls the reconciler directly: that
// keeps paho's internal goroutine from ever blocking on gate acquisition.
func (b *Bus) onMessage(c paho.Client, m paho.Message) {
	zone, _, ok := topicZoneAndEvent(b.cfg.TopicPrefix, m.Topic())
	if !ok {
		b.logger.Warn("mqtt message on unrecognized topic, discarding", "topic", m.Topic())
		return
	}

	var msg message
	if err := json.Unmarshal(m.Payload(), &msg); err != nil {
		b.logger.Warn("mqtt message parse failed, discarding", "topic", m.Topic(), "error", err)
		return
	}
	if msg.Name != "" && msg.Name != zone {
		b.logger.Warn("mqtt zone name mismatch between topic and payload, discarding",
			"topic_zone", zone, "payload_zone", msg.Name)
		return
	}

	intent := domain.ZoneSyncIntent(uuid.New().String(), domain.SourceMessageBus, zone, time.Now())
	select {
	case b.intents <- intent:
	default:
		b.logger.Warn("mqtt intent buffer full, dropping message", "intent_id", intent.ID, "zone", msg.Name)
	}
}

func (b *Bus) drainIntents() {
	for {
		select {
		case <-b.done:
			return
		case intent := <-b.intents:
			b.logger.Debug("mqtt intent dequeued", "intent_id", intent.ID, "zone", strings.TrimPrefix(intent.Scope, "zone:"))
			b.cfg.Handler(strings.TrimPrefix(intent.Scope, "zone:"))
		}
	}
}
