package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidEvents_OnlyRecognizedSuffixes(t *testing.T) {
	require.True(t, validEvents["created"])
	require.True(t, validEvents["updated"])
	require.True(t, validEvents["deleted"])
	require.False(t, validEvents["renamed"])
}

func TestTopicZoneAndEvent_ParsesMiddleSegmentAsZone(t *testing.T) {
	zone, event, ok := topicZoneAndEvent("dns/zones", "dns/zones/example.com/updated")
	require.True(t, ok)
	require.Equal(t, "example.com", zone)
	require.Equal(t, "updated", event)
}

func TestTopicZoneAndEvent_UnescapesZoneSegment(t *testing.T) {
	zone, _, ok := topicZoneAndEvent("dns/zones", "dns/zones/sub%2Fzone.example.com/created")
	require.True(t, ok)
	require.Equal(t, "sub/zone.example.com", zone)
}

func TestTopicZoneAndEvent_RejectsUnknownEvent(t *testing.T) {
	_, _, ok := topicZoneAndEvent("dns/zones", "dns/zones/example.com/renamed")
	require.False(t, ok)
}

func TestTopicZoneAndEvent_RejectsWrongShape(t *testing.T) {
	_, _, ok := topicZoneAndEvent("dns/zones", "dns/zones/created")
	require.False(t, ok)
}

func TestNew_BuildsDisconnectedBus(t *testing.T) {
	b := New(Config{
		BrokerURL:   "mqtt://localhost:1883",
		ClientID:    "test",
		TopicPrefix: "dns/zones",
		QoS:         1,
		KeepAlive:   60,
		Handler:     func(zoneName string) {},
	})
	require.False(t, b.Connected())
}
