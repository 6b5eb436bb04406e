// Command backend is the go-side probe of the MQTT latency pipeline. It
// publishes /driver/offer and /driver/ride on fixed intervals and subscribes
// to /driver/location, logging one line per message in the token grammar that
// cmd/report extracts:
//
//	[publish] topic=<t> seq=<n> pub_ts_ms=<ms>
//	[recv] topic=<t> seq=<n> latency_ms=<ms> pub_ts_ms=<ms> recv_ts_ms=<ms>
//
// Payloads carry a ts=<ms>|seq=<n>| prefix so the receiving side can compute
// latency without any side channel; the remainder pads to the configured size.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	topicOffer    = "/driver/offer"
	topicRide     = "/driver/ride"
	topicLocation = "/driver/location"
)

type counters struct {
	pubOffer atomic.Int64
	ackOffer atomic.Int64
	pubRide  atomic.Int64
	ackRide  atomic.Int64
	recvLoc  atomic.Int64
}

// buildPayload renders the ts=|seq=| prefix padded with 'x' to size bytes.
func buildPayload(tsMs, seq int64, size int) []byte {
	prefix := fmt.Sprintf("ts=%d|seq=%d|", tsMs, seq)
	pad := size - len(prefix)
	if pad < 0 {
		pad = 0
	}
	payload := make([]byte, len(prefix)+pad)
	copy(payload, prefix)
	for i := len(prefix); i < len(payload); i++ {
		payload[i] = 'x'
	}
	return payload
}

// parsePayloadMeta pulls the ts= and seq= values back out of a payload
// prefix. Returns ok=false for payloads that do not carry the prefix.
func parsePayloadMeta(b []byte) (tsMs, seq int64, ok bool) {
	s := string(b)
	tsMs, ok = fieldValue(s, "ts=")
	if !ok {
		return 0, 0, false
	}
	seq, ok = fieldValue(s, "seq=")
	if !ok {
		return 0, 0, false
	}
	return tsMs, seq, true
}

func fieldValue(s, label string) (int64, bool) {
	i := strings.Index(s, label)
	if i < 0 {
		return 0, false
	}
	i += len(label)
	j := strings.IndexByte(s[i:], '|')
	if j < 0 {
		return 0, false
	}
	var n int64
	for _, c := range []byte(s[i : i+j]) {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
	}
	return n, true
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("backend: config: %v", err)
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.Printf("backend: starting host=%s port=%d client_id=%s", cfg.MQTT.Host, cfg.MQTT.Port, cfg.MQTT.ClientID)

	if cfg.Log.Debug {
		mqtt.ERROR = log.New(os.Stdout, "paho.ERROR ", log.LstdFlags)
		mqtt.WARN = log.New(os.Stdout, "paho.WARN ", log.LstdFlags)
		mqtt.CRITICAL = log.New(os.Stdout, "paho.CRIT ", log.LstdFlags)
		mqtt.DEBUG = log.New(os.Stdout, "paho.DEBUG ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	broker := fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port)
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.MQTT.ClientID).
		SetCleanSession(*cfg.MQTT.CleanSession).
		SetAutoReconnect(*cfg.Retry.Enabled).
		SetKeepAlive(time.Duration(cfg.MQTT.KeepAliveSecs) * time.Second).
		SetPingTimeout(time.Duration(cfg.Retry.PingTimeoutMs) * time.Millisecond).
		SetConnectTimeout(time.Duration(cfg.Retry.ConnectTimeoutMs) * time.Millisecond).
		SetMaxReconnectInterval(time.Duration(cfg.Retry.MaxReconnectIntervalMs) * time.Millisecond).
		SetWriteTimeout(time.Duration(cfg.Retry.WriteTimeoutMs) * time.Millisecond).
		SetResumeSubs(true).
		SetOrderMatters(false)

	// Socket tuning happens in a custom dialer; paho exposes no options for
	// TCP keepalive, nodelay, or kernel buffer sizes.
	opts.SetCustomOpenConnectionFn(func(uri *url.URL, _ mqtt.ClientOptions) (net.Conn, error) {
		d := net.Dialer{
			Timeout:   time.Duration(cfg.Retry.ConnectTimeoutMs) * time.Millisecond,
			KeepAlive: time.Duration(cfg.Socket.TCPKeepAliveSecs) * time.Second,
		}
		conn, err := d.DialContext(ctx, "tcp", uri.Host)
		if err != nil {
			return nil, err
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(cfg.Socket.TCPNoDelay)
			if cfg.Socket.ReadBuffer > 0 {
				_ = tcp.SetReadBuffer(cfg.Socket.ReadBuffer)
			}
			if cfg.Socket.WriteBuffer > 0 {
				_ = tcp.SetWriteBuffer(cfg.Socket.WriteBuffer)
			}
		}
		return conn, nil
	})

	var cnt counters
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Printf("backend: [connect] broker=%s", broker)
		t := c.Subscribe(topicLocation, byte(*cfg.QoS.Location), func(_ mqtt.Client, m mqtt.Message) {
			recvTs := time.Now().UnixMilli()
			pubTs, seq, ok := parsePayloadMeta(m.Payload())
			if !ok {
				return
			}
			cnt.recvLoc.Add(1)
			log.Printf("backend: [recv] topic=%s seq=%d qos=%d bytes=%d latency_ms=%d pub_ts_ms=%d recv_ts_ms=%d",
				m.Topic(), seq, m.Qos(), len(m.Payload()), recvTs-pubTs, pubTs, recvTs)
		})
		if !t.WaitTimeout(5*time.Second) || t.Error() != nil {
			log.Printf("backend: [error] subscribe %s err=%v", topicLocation, t.Error())
			return
		}
		log.Printf("backend: subscribed %s", topicLocation)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("backend: [disconnect] err=%v", err)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		log.Printf("backend: [reconnecting]")
	})

	client := mqtt.NewClient(opts)
	if tok := client.Connect(); !tok.WaitTimeout(10*time.Second) || tok.Error() != nil {
		log.Fatalf("backend: connect error: %v", tok.Error())
	}

	publish := func(topic string, qos byte, size int, seq int64, pubCnt, ackCnt *atomic.Int64) {
		ts := time.Now().UnixMilli()
		payload := buildPayload(ts, seq, size)
		log.Printf("backend: [publish] topic=%s seq=%d pub_ts_ms=%d bytes=%d", topic, seq, ts, len(payload))
		tok := client.Publish(topic, qos, false, payload)
		pubCnt.Add(1)
		go func() {
			if !tok.WaitTimeout(10 * time.Second) {
				log.Printf("backend: [pub_timeout] topic=%s seq=%d", topic, seq)
				return
			}
			if tok.Error() != nil {
				log.Printf("backend: [pub_error] topic=%s seq=%d err=%v", topic, seq, tok.Error())
				return
			}
			ackCnt.Add(1)
		}()
	}

	offerTicker := time.NewTicker(time.Duration(cfg.Publish.OfferEveryMs) * time.Millisecond)
	rideTicker := time.NewTicker(time.Duration(cfg.Publish.RideEveryMs) * time.Millisecond)
	defer offerTicker.Stop()
	defer rideTicker.Stop()

	var offerSeq, rideSeq atomic.Int64
	go func() {
		for {
			select {
			case <-offerTicker.C:
				if client.IsConnectionOpen() {
					publish(topicOffer, byte(*cfg.QoS.Offer), cfg.PayloadBytes.Offer, offerSeq.Add(1), &cnt.pubOffer, &cnt.ackOffer)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		for {
			select {
			case <-rideTicker.C:
				if client.IsConnectionOpen() {
					publish(topicRide, byte(*cfg.QoS.Ride), cfg.PayloadBytes.Ride, rideSeq.Add(1), &cnt.pubRide, &cnt.ackRide)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Per-second stats line; the report ignores it, humans tail it.
	go func() {
		t := time.NewTicker(1 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				log.Printf("backend: [stats] offer pub=%d ack=%d | ride pub=%d ack=%d | location recv=%d | connected=%v",
					cnt.pubOffer.Load(), cnt.ackOffer.Load(),
					cnt.pubRide.Load(), cnt.ackRide.Load(),
					cnt.recvLoc.Load(), client.IsConnectionOpen())
			case <-ctx.Done():
				return
			}
		}
	}()

	sig := <-sigc
	log.Printf("backend: shutting down signal=%v", sig)
	cancel()
	if client.IsConnectionOpen() {
		client.Disconnect(250)
	}
}
