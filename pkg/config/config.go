// Package config reads the publisher configuration snapshots that annotate
// the report. It is a narrow reader over a fixed four-section schema, not a
// general configuration system: sections and keys outside the schema are
// dropped, and any failure degrades to an empty snapshot so the report simply
// omits the annotation fields.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Snapshot is the flat four-section view of one publisher config file.
// Values are scalars only (string/int/bool).
type Snapshot struct {
	MQTT         map[string]interface{}
	QoS          map[string]interface{}
	PayloadBytes map[string]interface{}
	Publish      map[string]interface{}
}

// Load extracts the recognised sections from the YAML file at path. Missing
// file, unreadable file, or malformed YAML all return an empty snapshot.
func Load(path string) Snapshot {
	snap := emptySnapshot()
	data, err := os.ReadFile(path)
	if err != nil {
		return snap
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return snap
	}
	snap.MQTT = section(raw, "mqtt")
	snap.QoS = section(raw, "qos")
	snap.PayloadBytes = section(raw, "payload_bytes")
	snap.Publish = section(raw, "publish")
	return snap
}

func emptySnapshot() Snapshot {
	return Snapshot{
		MQTT:         map[string]interface{}{},
		QoS:          map[string]interface{}{},
		PayloadBytes: map[string]interface{}{},
		Publish:      map[string]interface{}{},
	}
}

// section flattens one named mapping, keeping scalar values only.
func section(raw map[string]interface{}, name string) map[string]interface{} {
	out := map[string]interface{}{}
	m, ok := raw[name].(map[string]interface{})
	if !ok {
		return out
	}
	for k, v := range m {
		switch v.(type) {
		case string, int, int64, uint64, float64, bool:
			out[k] = v
		}
	}
	return out
}

// publishIntervalKeys maps a report alias to the publish-section key holding
// its interval.
var publishIntervalKeys = map[string]string{
	"offer":    "offer_every_ms",
	"ride":     "ride_every_ms",
	"location": "location_every_ms",
}

// PublisherSnapshot assembles the per-topic publisher annotation block that
// the summary attaches to each alias. Location traffic originates from the
// java client; offer and ride from the go backend. Absent keys come through
// as nulls in the JSON, never as zeroes.
func PublisherSnapshot(alias string, client, backend Snapshot) map[string]interface{} {
	if alias == "location" {
		m := client.MQTT
		return map[string]interface{}{
			"publisher":                   "java-client",
			"client_id":                   m["client_id"],
			"host":                        m["host"],
			"port":                        m["port"],
			"keepalive_secs":              m["keepalive_secs"],
			"clean_session":               m["clean_session"],
			"separate_pubsub_connections": m["separate_pubsub_connections"],
			"qos":                         client.QoS[alias],
			"payload_bytes":               client.PayloadBytes[alias],
			"publish_interval_ms":         client.Publish[publishIntervalKeys[alias]],
		}
	}
	m := backend.MQTT
	return map[string]interface{}{
		"publisher":           "go-backend",
		"client_id":           m["client_id"],
		"host":                m["host"],
		"port":                m["port"],
		"keepalive_secs":      m["keepalive_secs"],
		"clean_session":       m["clean_session"],
		"qos":                 backend.QoS[alias],
		"payload_bytes":       backend.PayloadBytes[alias],
		"publish_interval_ms": backend.Publish[publishIntervalKeys[alias]],
	}
}
