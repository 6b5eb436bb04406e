package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "backend.yaml")
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_RecognisedSections(t *testing.T) {
	p := writeConfig(t, `mqtt:
  host: mqtt-gateway
  port: 1883
  client_id: backend-1
  clean_session: true
qos:
  offer: 1
  ride: 0
payload_bytes:
  offer: 100
publish:
  offer_every_ms: 1000
  ride_every_ms: 2000
socket:
  tcp_nodelay: true
`)
	snap := Load(p)
	if snap.MQTT["host"] != "mqtt-gateway" || snap.MQTT["port"] != 1883 {
		t.Fatalf("unexpected mqtt section: %+v", snap.MQTT)
	}
	if snap.MQTT["clean_session"] != true {
		t.Fatalf("bool value not preserved: %+v", snap.MQTT)
	}
	if snap.QoS["offer"] != 1 || snap.QoS["ride"] != 0 {
		t.Fatalf("unexpected qos section: %+v", snap.QoS)
	}
	if snap.Publish["offer_every_ms"] != 1000 {
		t.Fatalf("unexpected publish section: %+v", snap.Publish)
	}
}

func TestLoad_UnrecognisedSectionIgnored(t *testing.T) {
	p := writeConfig(t, `socket:
  tcp_nodelay: true
mqtt:
  host: h
  nested:
    dropped: true
`)
	snap := Load(p)
	if _, ok := snap.MQTT["nested"]; ok {
		t.Fatalf("non-scalar values must be dropped: %+v", snap.MQTT)
	}
	if snap.MQTT["host"] != "h" {
		t.Fatalf("scalar sibling lost: %+v", snap.MQTT)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	snap := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if len(snap.MQTT) != 0 || len(snap.QoS) != 0 || len(snap.PayloadBytes) != 0 || len(snap.Publish) != 0 {
		t.Fatalf("missing file must degrade to empty snapshot: %+v", snap)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	p := writeConfig(t, "mqtt: [unbalanced\n  ::bad")
	snap := Load(p)
	if len(snap.MQTT) != 0 {
		t.Fatalf("malformed yaml must degrade to empty snapshot: %+v", snap)
	}
}

func TestPublisherSnapshot_LocationUsesClientConfig(t *testing.T) {
	client := Snapshot{
		MQTT:         map[string]interface{}{"client_id": "java-1", "host": "gw", "port": 1883, "separate_pubsub_connections": true},
		QoS:          map[string]interface{}{"location": 1},
		PayloadBytes: map[string]interface{}{"location": 200},
		Publish:      map[string]interface{}{"location_every_ms": 250},
	}
	backend := Snapshot{MQTT: map[string]interface{}{"client_id": "backend-1"}}

	got := PublisherSnapshot("location", client, backend)
	if got["publisher"] != "java-client" || got["client_id"] != "java-1" {
		t.Fatalf("location must snapshot the client config: %+v", got)
	}
	if got["qos"] != 1 || got["payload_bytes"] != 200 || got["publish_interval_ms"] != 250 {
		t.Fatalf("unexpected location snapshot: %+v", got)
	}
	if got["separate_pubsub_connections"] != true {
		t.Fatalf("client-only field missing: %+v", got)
	}
}

func TestPublisherSnapshot_OfferUsesBackendConfig(t *testing.T) {
	backend := Snapshot{
		MQTT:         map[string]interface{}{"client_id": "backend-1", "host": "gw", "port": 1883},
		QoS:          map[string]interface{}{"offer": 1},
		PayloadBytes: map[string]interface{}{"offer": 100},
		Publish:      map[string]interface{}{"offer_every_ms": 1000},
	}
	got := PublisherSnapshot("offer", Snapshot{}, backend)
	if got["publisher"] != "go-backend" || got["publish_interval_ms"] != 1000 {
		t.Fatalf("unexpected offer snapshot: %+v", got)
	}
	if _, ok := got["separate_pubsub_connections"]; ok {
		t.Fatalf("backend snapshot must not carry the client-only field: %+v", got)
	}
}

func TestPublisherSnapshot_EmptyConfigsYieldNulls(t *testing.T) {
	got := PublisherSnapshot("ride", Snapshot{}, Snapshot{})
	if got["publisher"] != "go-backend" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
	if got["client_id"] != nil || got["qos"] != nil {
		t.Fatalf("absent keys must be nil, got %+v", got)
	}
}
