package main

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MQTTPublisher publishes decoded Morse text, squelch events and
// periodic pipeline metrics to an MQTT broker.
type MQTTPublisher struct {
	client mqtt.Client
	config *MQTTConfig
}

// MetricPayload represents a metric message for MQTT
type MetricPayload struct {
	Timestamp int64              `json:"timestamp"`
	Metrics   map[string]float64 `json:"metrics"`
	Labels    map[string]string  `json:"labels,omitempty"`
}

// generateClientID creates a random client ID for MQTT connection
func generateClientID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return "waverider_" + hex.EncodeToString(bytes)
}

// loadTLSConfig loads TLS configuration from files
func loadTLSConfig(tlsConfig MQTTTLSConfig) (*tls.Config, error) {
	if !tlsConfig.Enabled {
		return nil, nil
	}

	config := &tls.Config{}

	if tlsConfig.CACert != "" {
		caCert, err := os.ReadFile(tlsConfig.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		config.RootCAs = caCertPool
	}

	if tlsConfig.ClientCert != "" && tlsConfig.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(tlsConfig.ClientCert, tlsConfig.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

// NewMQTTPublisher connects to the broker and returns a publisher.
func NewMQTTPublisher(config *MQTTConfig) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(generateClientID())

	if config.Username != "" {
		opts.SetUsername(config.Username)
	}
	if config.Password != "" {
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	if config.TLS.Enabled {
		tlsConfig, err := loadTLSConfig(config.TLS)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS config: %w", err)
		}
		opts.SetTLSConfig(tlsConfig)
	}

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("MQTT: Connected to broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("MQTT: Connection lost: %v", err)
	})
	opts.SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
		log.Println("MQTT: Attempting to reconnect...")
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Printf("MQTT: Successfully connected to broker: %s", config.Broker)

	return &MQTTPublisher{
		client: client,
		config: config,
	}, nil
}

// StartPublisher starts the background metrics publishing goroutine.
func (mp *MQTTPublisher) StartPublisher(ctx context.Context) {
	go mp.startMetricsPublisher(ctx)
}

// startMetricsPublisher publishes pipeline metrics at the configured
// interval.
func (mp *MQTTPublisher) startMetricsPublisher(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(mp.config.PublishInterval) * time.Second)
	defer ticker.Stop()

	log.Printf("MQTT: Metrics publisher started with %d second interval", mp.config.PublishInterval)

	mp.publishMetrics()

	for {
		select {
		case <-ctx.Done():
			log.Println("MQTT: Metrics publisher stopped")
			return
		case <-ticker.C:
			mp.publishMetrics()
		}
	}
}

// publishMetrics gathers pipeline metrics from the Prometheus registry
// and publishes them grouped by subsystem.
func (mp *MQTTPublisher) publishMetrics() {
	timestamp := time.Now().Unix()

	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		log.Printf("MQTT ERROR: Failed to gather Prometheus metrics: %v", err)
		return
	}

	pipelineMetrics := make(map[string]float64)
	feedMetrics := make(map[string]float64)

	for _, mf := range metricFamilies {
		metricName := mf.GetName()
		if !strings.HasPrefix(metricName, "waverider_") {
			continue
		}

		for _, m := range mf.GetMetric() {
			value := extractMetricValue(m)
			if value == nil {
				continue
			}

			key := metricName
			for _, label := range m.GetLabel() {
				key += "_" + label.GetName() + "_" + label.GetValue()
			}

			switch {
			case strings.HasPrefix(metricName, "waverider_ws_"),
				strings.HasPrefix(metricName, "waverider_active_sessions"),
				strings.HasPrefix(metricName, "waverider_audio_bytes"),
				strings.HasPrefix(metricName, "waverider_spectrum_bytes"):
				feedMetrics[key] = *value
			default:
				pipelineMetrics[key] = *value
			}
		}
	}

	mp.publish(fmt.Sprintf("%s/metrics/pipeline", mp.config.TopicPrefix), MetricPayload{
		Timestamp: timestamp,
		Metrics:   pipelineMetrics,
	})
	mp.publish(fmt.Sprintf("%s/metrics/feeds", mp.config.TopicPrefix), MetricPayload{
		Timestamp: timestamp,
		Metrics:   feedMetrics,
	})
}

// extractMetricValue extracts the numeric value from a Prometheus metric
func extractMetricValue(m *dto.Metric) *float64 {
	var v float64
	switch {
	case m.GetGauge() != nil:
		v = m.GetGauge().GetValue()
	case m.GetCounter() != nil:
		v = m.GetCounter().GetValue()
	case m.GetHistogram() != nil:
		v = m.GetHistogram().GetSampleSum()
	case m.GetSummary() != nil:
		v = m.GetSummary().GetSampleSum()
	default:
		return nil
	}
	return &v
}

// publish sends a payload to an MQTT topic
func (mp *MQTTPublisher) publish(topic string, payload MetricPayload) {
	if len(payload.Metrics) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("MQTT ERROR: Failed to marshal payload for topic %s: %v", topic, err)
		return
	}

	token := mp.client.Publish(topic, mp.config.QoS, mp.config.Retain, data)
	if token.Wait() && token.Error() != nil {
		log.Printf("MQTT ERROR: Failed to publish to topic %s: %v", topic, token.Error())
	}
}

// PublishMorse publishes a decoded text increment.
// Topic structure: {prefix}/morse
func (mp *MQTTPublisher) PublishMorse(text string) {
	if mp == nil || !mp.client.IsConnected() {
		return
	}

	payload := map[string]interface{}{
		"timestamp": time.Now().Unix(),
		"text":      text,
	}

	topic := fmt.Sprintf("%s/morse", mp.config.TopicPrefix)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("MQTT ERROR: Failed to marshal morse payload: %v", err)
		return
	}

	// Publish asynchronously so the DSP loop never blocks on the broker
	token := mp.client.Publish(topic, mp.config.QoS, mp.config.Retain, data)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("MQTT ERROR: Failed to publish morse text to %s: %v", topic, token.Error())
		}
	}()
}

// PublishSquelch publishes a squelch state transition.
// Topic structure: {prefix}/squelch
func (mp *MQTTPublisher) PublishSquelch(open bool, powerDb float64) {
	if mp == nil || !mp.client.IsConnected() {
		return
	}

	payload := map[string]interface{}{
		"timestamp": time.Now().Unix(),
		"open":      open,
		"power_db":  powerDb,
	}

	topic := fmt.Sprintf("%s/squelch", mp.config.TopicPrefix)

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("MQTT ERROR: Failed to marshal squelch payload: %v", err)
		return
	}

	token := mp.client.Publish(topic, mp.config.QoS, mp.config.Retain, data)
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("MQTT ERROR: Failed to publish squelch state to %s: %v", topic, token.Error())
		}
	}()
}

// Disconnect gracefully disconnects from the MQTT broker
func (mp *MQTTPublisher) Disconnect() {
	if mp.client != nil && mp.client.IsConnected() {
		mp.client.Disconnect(250)
		log.Println("MQTT: Disconnected from broker")
	}
}
