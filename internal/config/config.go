// Package config loads and validates NETBOX_PDNS_* environment variables
// into a single Config value, once, at startup. There is no late binding:
// every field is read and validated before the rest of the process starts.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
)

const envPrefix = "NETBOX_PDNS_"

// Config is the fully validated process configuration.
type Config struct {
	APIKey  string
	NBURL   string
	NBToken string
	NBNSID  int

	PDNSURL      string
	PDNSToken    string
	PDNSServerID string

	WebhookSecret string
	SyncCrontab   string
	LogLevel      string

	MQTTEnabled        bool
	MQTTBrokerURL      string
	MQTTClientID       string
	MQTTTopicPrefix    string
	MQTTQoS            int
	MQTTKeepalive      int
	MQTTReconnectDelay int
	MQTTUsername       string
	MQTTPassword       string
}

// Load reads NETBOX_PDNS_* environment variables and validates them,
// returning a domain.ErrConfigInvalid-wrapped error on the first problem
// found (fail fast, per §6).
func Load() (Config, error) {
	c := Config{
		APIKey:  env("API_KEY"),
		NBURL:   env("NB_URL"),
		NBToken: env("NB_TOKEN"),

		PDNSURL:      env("PDNS_URL"),
		PDNSToken:    env("PDNS_TOKEN"),
		PDNSServerID: envDefault("PDNS_SERVER_ID", "localhost"),

		WebhookSecret: env("WEBHOOK_SECRET"),
		SyncCrontab:   envDefault("SYNC_CRONTAB", "*/15 * * * *"),
		LogLevel:      envDefault("LOG_LEVEL", "INFO"),

		MQTTEnabled:        envBool("MQTT_ENABLED", false),
		MQTTBrokerURL:      env("MQTT_BROKER_URL"),
		MQTTClientID:       envDefault("MQTT_CLIENT_ID", "netbox-pdns"),
		MQTTTopicPrefix:    envDefault("MQTT_TOPIC_PREFIX", "dns/zones"),
		MQTTQoS:            envInt("MQTT_QOS", 1),
		MQTTKeepalive:      envInt("MQTT_KEEPALIVE", 60),
		MQTTReconnectDelay: envInt("MQTT_RECONNECT_DELAY", 5),
		MQTTUsername:       env("MQTT_USERNAME"),
		MQTTPassword:       env("MQTT_PASSWORD"),
	}

	nsID, err := strconv.Atoi(env("NB_NS_ID"))
	if err != nil || nsID <= 0 {
		return Config{}, invalid("NB_NS_ID must be a positive integer, got %q", env("NB_NS_ID"))
	}
	c.NBNSID = nsID

	for _, name := range []string{"MQTT_QOS", "MQTT_KEEPALIVE", "MQTT_RECONNECT_DELAY"} {
		if v := env(name); v != "" {
			if _, err := strconv.Atoi(v); err != nil {
				return Config{}, invalid("%s must be an integer, got %q", name, v)
			}
		}
	}
	if v := env("MQTT_ENABLED"); v != "" {
		if _, err := strconv.ParseBool(v); err != nil {
			return Config{}, invalid("MQTT_ENABLED must be a boolean, got %q", v)
		}
	}

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	required := map[string]string{
		"API_KEY":    c.APIKey,
		"NB_URL":     c.NBURL,
		"NB_TOKEN":   c.NBToken,
		"PDNS_URL":   c.PDNSURL,
		"PDNS_TOKEN": c.PDNSToken,
	}
	for name, v := range required {
		if v == "" {
			return invalid("%s%s is required", envPrefix, name)
		}
	}

	if _, err := url.ParseRequestURI(c.NBURL); err != nil {
		return invalid("NB_URL is not a valid URL: %v", err)
	}
	if _, err := url.ParseRequestURI(c.PDNSURL); err != nil {
		return invalid("PDNS_URL is not a valid URL: %v", err)
	}

	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL":
	default:
		return invalid("LOG_LEVEL must be one of DEBUG/INFO/WARNING/ERROR/CRITICAL, got %q", c.LogLevel)
	}

	if c.MQTTEnabled {
		u, err := url.Parse(c.MQTTBrokerURL)
		if err != nil || (u.Scheme != "mqtt" && u.Scheme != "mqtts") {
			return invalid("MQTT_BROKER_URL must use scheme mqtt or mqtts, got %q", c.MQTTBrokerURL)
		}
		if c.MQTTQoS < 0 || c.MQTTQoS > 2 {
			return invalid("MQTT_QOS must be 0, 1, or 2, got %d", c.MQTTQoS)
		}
		if c.MQTTKeepalive < 10 || c.MQTTKeepalive > 3600 {
			return invalid("MQTT_KEEPALIVE must be between 10 and 3600, got %d", c.MQTTKeepalive)
		}
		if c.MQTTReconnectDelay < 1 || c.MQTTReconnectDelay > 300 {
			return invalid("MQTT_RECONNECT_DELAY must be between 1 and 300, got %d", c.MQTTReconnectDelay)
		}
		if (c.MQTTUsername == "") != (c.MQTTPassword == "") {
			return invalid("MQTT_USERNAME and MQTT_PASSWORD must both be set or both be empty")
		}
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{domain.ErrConfigInvalid}, args...)...)
}

func env(name string) string {
	return os.Getenv(envPrefix + name)
}

func envDefault(name, def string) string {
	if v := env(name); v != "" {
		return v
	}
	return def
}

func envBool(name string, def bool) bool {
	v := env(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(name string, def int) int {
	v := env(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
