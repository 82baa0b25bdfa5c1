package mqtt

import (
	"testing"

	"github.com/apscout/apscout/pkg"
	"github.com/apscout/apscout/pkg/logx"
)

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(nil, logx.New("error"))
	if client.config.TopicPrefix != "apscout" {
		t.Fatalf("unexpected topic prefix %q", client.config.TopicPrefix)
	}
	if client.config.Enabled {
		t.Fatalf("MQTT must be disabled by default")
	}
}

func TestDisabledClientIsNoOp(t *testing.T) {
	cfg := DefaultConfig()
	client := NewClient(cfg, logx.New("error"))

	if err := client.Connect(); err != nil {
		t.Fatalf("disabled Connect must not fail: %v", err)
	}
	if err := client.PublishScore(pkg.ScoreUpdate{BSSID: "AA:BB:CC:DD:EE:01", Score: 50}); err != nil {
		t.Fatalf("disabled PublishScore must not fail: %v", err)
	}
	if err := client.PublishRelocation(pkg.RelocationEvent{BSSID: "AA:BB:CC:DD:EE:01"}); err != nil {
		t.Fatalf("disabled PublishRelocation must not fail: %v", err)
	}
	if err := client.PublishStatus(map[string]interface{}{"x": 1}); err != nil {
		t.Fatalf("disabled PublishStatus must not fail: %v", err)
	}
	if client.IsConnected() {
		t.Fatalf("disabled client reports connected")
	}
	if !client.GetLastPublish().IsZero() {
		t.Fatalf("disabled client recorded a publish")
	}
}

func TestEnabledButDisconnectedSkipsPublish(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	client := NewClient(cfg, logx.New("error"))

	// Not connected yet: publishes are skipped, never attempted.
	if err := client.PublishScore(pkg.ScoreUpdate{BSSID: "AA:BB:CC:DD:EE:02", Score: 80}); err != nil {
		t.Fatalf("disconnected publish must be skipped: %v", err)
	}
	if !client.GetLastPublish().IsZero() {
		t.Fatalf("skipped publish updated lastPublish")
	}
}

func TestTopicSegment(t *testing.T) {
	cases := []struct{ in, want string }{
		{"AA:BB:CC:DD:EE:FF", "aa-bb-cc-dd-ee-ff"},
		{"aa:bb:cc:dd:ee:01", "aa-bb-cc-dd-ee-01"},
		{"nodots", "nodots"},
	}
	for _, tc := range cases {
		if got := topicSegment(tc.in); got != tc.want {
			t.Fatalf("topicSegment(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
