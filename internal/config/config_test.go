package config

import (
	"errors"
	"os"
	"testing"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	vars := []string{
		"API_KEY", "NB_URL", "NB_TOKEN", "NB_NS_ID", "PDNS_URL", "PDNS_TOKEN",
		"WEBHOOK_SECRET", "SYNC_CRONTAB", "LOG_LEVEL", "PDNS_SERVER_ID",
		"MQTT_ENABLED", "MQTT_BROKER_URL", "MQTT_CLIENT_ID", "MQTT_TOPIC_PREFIX",
		"MQTT_QOS", "MQTT_KEEPALIVE", "MQTT_RECONNECT_DELAY", "MQTT_USERNAME", "MQTT_PASSWORD",
	}
	for _, v := range vars {
		require.NoError(t, os.Unsetenv(envPrefix+v))
	}
}

func setMinimalValid(t *testing.T) {
	t.Helper()
	require.NoError(t, os.Setenv(envPrefix+"API_KEY", "secret"))
	require.NoError(t, os.Setenv(envPrefix+"NB_URL", "https://netbox.example.com"))
	require.NoError(t, os.Setenv(envPrefix+"NB_TOKEN", "nbtoken"))
	require.NoError(t, os.Setenv(envPrefix+"NB_NS_ID", "3"))
	require.NoError(t, os.Setenv(envPrefix+"PDNS_URL", "https://pdns.example.com"))
	require.NoError(t, os.Setenv(envPrefix+"PDNS_TOKEN", "pdnstoken"))
}

func TestLoad_ValidMinimal(t *testing.T) {
	clearEnv(t)
	setMinimalValid(t)

	c, err := Load()
	require.NoError(t, err)
	require.Equal(t, 3, c.NBNSID)
	require.Equal(t, "*/15 * * * *", c.SyncCrontab)
	require.Equal(t, "localhost", c.PDNSServerID)
	require.False(t, c.MQTTEnabled)
}

func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConfigInvalid))
}

func TestLoad_InvalidNSID(t *testing.T) {
	clearEnv(t)
	setMinimalValid(t)
	require.NoError(t, os.Setenv(envPrefix+"NB_NS_ID", "not-a-number"))

	_, err := Load()
	require.Error(t, err)
	require.True(t, errors.Is(err, domain.ErrConfigInvalid))
}

func TestLoad_MQTTRequiresBrokerWhenEnabled(t *testing.T) {
	clearEnv(t)
	setMinimalValid(t)
	require.NoError(t, os.Setenv(envPrefix+"MQTT_ENABLED", "true"))

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_MQTTUsernamePasswordBothOrNeither(t *testing.T) {
	clearEnv(t)
	setMinimalValid(t)
	require.NoError(t, os.Setenv(envPrefix+"MQTT_ENABLED", "true"))
	require.NoError(t, os.Setenv(envPrefix+"MQTT_BROKER_URL", "mqtt://broker:1883"))
	require.NoError(t, os.Setenv(envPrefix+"MQTT_USERNAME", "user"))

	_, err := Load()
	require.Error(t, err)
}
