package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Config mirrors configs/backend.yaml. Defaults are applied in code so a
// sparse config file still yields a working probe.
type Config struct {
	MQTT struct {
		Host          string `yaml:"host"`
		Port          int    `yaml:"port"`
		ClientID      string `yaml:"client_id"`
		KeepAliveSecs int    `yaml:"keepalive_secs"`
		CleanSession  *bool  `yaml:"clean_session"`
	} `yaml:"mqtt"`
	Retry struct {
		Enabled                *bool `yaml:"enabled"`
		ConnectTimeoutMs       int   `yaml:"connect_timeout_ms"`
		MaxReconnectIntervalMs int   `yaml:"max_reconnect_interval_ms"`
		PingTimeoutMs          int   `yaml:"ping_timeout_ms"`
		WriteTimeoutMs         int   `yaml:"write_timeout_ms"`
	} `yaml:"retry"`
	Publish struct {
		OfferEveryMs int `yaml:"offer_every_ms"`
		RideEveryMs  int `yaml:"ride_every_ms"`
	} `yaml:"publish"`
	QoS struct {
		// Pointers: QoS 0 is valid, so only nil means "apply default".
		Location *int `yaml:"location"`
		Offer    *int `yaml:"offer"`
		Ride     *int `yaml:"ride"`
	} `yaml:"qos"`
	PayloadBytes struct {
		Offer int `yaml:"offer"`
		Ride  int `yaml:"ride"`
	} `yaml:"payload_bytes"`
	Socket struct {
		TCPKeepAliveSecs int  `yaml:"tcp_keepalive_secs"`
		TCPNoDelay       bool `yaml:"tcp_nodelay"`
		ReadBuffer       int  `yaml:"read_buffer"`
		WriteBuffer      int  `yaml:"write_buffer"`
	} `yaml:"socket"`
	Log struct {
		Debug bool `yaml:"debug"`
	} `yaml:"log"`
}

// loadConfig reads BACKEND_CONFIG (default configs/backend.yaml) and fills in
// defaults for anything the file leaves out.
func loadConfig() (Config, error) {
	path := os.Getenv("BACKEND_CONFIG")
	if path == "" {
		path = "configs/backend.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}

	if c.MQTT.Host == "" {
		c.MQTT.Host = "mqtt-gateway"
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "backend-1"
	}
	if c.MQTT.KeepAliveSecs == 0 {
		c.MQTT.KeepAliveSecs = 15
	}
	if c.MQTT.CleanSession == nil {
		v := true
		c.MQTT.CleanSession = &v
	}
	if c.Retry.Enabled == nil {
		v := true
		c.Retry.Enabled = &v
	}
	if c.Retry.ConnectTimeoutMs == 0 {
		c.Retry.ConnectTimeoutMs = 5000
	}
	if c.Retry.MaxReconnectIntervalMs == 0 {
		c.Retry.MaxReconnectIntervalMs = 10000
	}
	if c.Retry.PingTimeoutMs == 0 {
		c.Retry.PingTimeoutMs = 5000
	}
	if c.Retry.WriteTimeoutMs == 0 {
		c.Retry.WriteTimeoutMs = 5000
	}
	if c.Publish.OfferEveryMs == 0 {
		c.Publish.OfferEveryMs = 1000
	}
	if c.Publish.RideEveryMs == 0 {
		c.Publish.RideEveryMs = 2000
	}
	if c.QoS.Location == nil {
		v := 1
		c.QoS.Location = &v
	}
	if c.QoS.Offer == nil {
		v := 1
		c.QoS.Offer = &v
	}
	if c.QoS.Ride == nil {
		v := 1
		c.QoS.Ride = &v
	}
	if c.PayloadBytes.Offer == 0 {
		c.PayloadBytes.Offer = 100
	}
	if c.PayloadBytes.Ride == 0 {
		c.PayloadBytes.Ride = 120
	}
	if c.Socket.TCPKeepAliveSecs == 0 {
		c.Socket.TCPKeepAliveSecs = 60
	}
	if c.Socket.ReadBuffer == 0 {
		c.Socket.ReadBuffer = 256 * 1024
	}
	if c.Socket.WriteBuffer == 0 {
		c.Socket.WriteBuffer = 256 * 1024
	}
	return c, nil
}
