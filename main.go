package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global debug flag
var DebugMode bool

// Global start time for process uptime tracking
var StartTime time.Time

func main() {
	// Record start time for uptime tracking
	StartTime = time.Now()

	// Parse command line flags
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Set global debug mode - check environment variable first, then CLI flag
	DebugMode = *debug
	if debugEnv := os.Getenv("DEBUG"); debugEnv != "" {
		// Environment variable takes precedence
		DebugMode = debugEnv == "true" || debugEnv == "1" || debugEnv == "yes"
	}
	if DebugMode {
		log.Println("Debug mode enabled")
	}

	// Load configuration
	config, err := LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create the IQ source
	var source IQSource
	switch config.Source.Type {
	case "rtp":
		source, err = NewRTPSource(config.Source.RTP, config.Radio.SampleRate, config.Radio.CenterFreq)
		if err != nil {
			log.Fatalf("Failed to create RTP source: %v", err)
		}
	default:
		source = NewSignalGenerator(config.Radio.SampleRate, config.Radio.CenterFreq)
		log.Printf("Using simulated IQ source (sample_rate=%d, center_freq=%d)",
			config.Radio.SampleRate, config.Radio.CenterFreq)
	}
	defer source.Close()

	// Metrics
	var metrics *PrometheusMetrics
	if config.Prometheus.Enabled {
		metrics = NewPrometheusMetrics()
		log.Println("Prometheus metrics enabled")
	}

	// MQTT publishing
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mqttPublisher *MQTTPublisher
	if config.MQTT.Enabled {
		mqttPublisher, err = NewMQTTPublisher(&config.MQTT)
		if err != nil {
			log.Printf("Warning: MQTT publishing disabled: %v", err)
		} else {
			defer mqttPublisher.Disconnect()
			if config.Prometheus.Enabled {
				mqttPublisher.StartPublisher(ctx)
			}
		}
	}

	// Sessions and the DSP pipeline
	sessions := NewSessionManager(config.Server.MaxSessions, metrics)

	engine, err := NewEngine(config, source, sessions, metrics, mqttPublisher)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	engine.Start()
	defer engine.Stop()

	// HTTP routes
	wsHandler := NewWebSocketHandler(engine, sessions, metrics)
	statusHandler := NewStatusHandler(engine, sessions, config)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/spectrum", wsHandler.HandleSpectrum)
	mux.HandleFunc("/ws/audio", wsHandler.HandleAudio)
	mux.Handle("/api/status", statusHandler)
	if config.Prometheus.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	server := &http.Server{
		Addr:    config.Server.Listen,
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %s", config.Server.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received signal %v, shutting down", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
