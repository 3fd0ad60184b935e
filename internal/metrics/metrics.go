// ABOUTME: Prometheus metrics for the voice chat client
// ABOUTME: Tracks playback queue progress and uplink traffic
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Resonate-Protocol/voicechat-go/pkg/playback"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for a session
type Metrics struct {
	registry *prometheus.Registry

	// Uplink
	AudioFramesSent prometheus.Counter
	ImagesSent      prometheus.Counter

	// Downlink
	TextReceived  prometheus.Counter
	DecodeErrors  prometheus.Counter
	ChunkDuration prometheus.Histogram

	// Playback queue, read from queue stats at scrape time
	ChunksReceived   prometheus.CounterFunc
	ChunksPlayed     prometheus.CounterFunc
	ChunksDropped    prometheus.CounterFunc
	ChunksOverflowed prometheus.CounterFunc
	QueuePending     prometheus.GaugeFunc
	QueuePlaying     prometheus.GaugeFunc
}

// New creates the metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		AudioFramesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_audio_frames_sent_total",
			Help: "Total number of microphone frames sent to the service",
		}),
		ImagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_images_sent_total",
			Help: "Total number of camera frames sent to the service",
		}),
		TextReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_text_messages_received_total",
			Help: "Total number of text messages received from the service",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "voicechat_decode_errors_total",
			Help: "Total number of audio payloads that failed to decode",
		}),
		ChunkDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicechat_chunk_duration_seconds",
			Help:    "Duration of received audio chunks",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
		}),
	}
}

// WatchQueue registers queue gauges and counters backed by the stats function
func (m *Metrics) WatchQueue(stats func() playback.Stats) {
	factory := promauto.With(m.registry)

	m.ChunksReceived = factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "voicechat_playback_chunks_received_total",
		Help: "Total number of audio chunks enqueued for playback",
	}, func() float64 { return float64(stats().Received) })

	m.ChunksPlayed = factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "voicechat_playback_chunks_played_total",
		Help: "Total number of audio chunks rendered successfully",
	}, func() float64 { return float64(stats().Played) })

	m.ChunksDropped = factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "voicechat_playback_chunks_dropped_total",
		Help: "Total number of audio chunks whose render failed",
	}, func() float64 { return float64(stats().Dropped) })

	m.ChunksOverflowed = factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "voicechat_playback_chunks_overflowed_total",
		Help: "Total number of audio chunks discarded because the queue was full",
	}, func() float64 { return float64(stats().Overflowed) })

	m.QueuePending = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "voicechat_playback_pending",
		Help: "Current number of chunks waiting to play",
	}, func() float64 { return float64(stats().Pending) })

	m.QueuePlaying = factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "voicechat_playback_playing",
		Help: "1 while a chunk is rendering, 0 when idle",
	}, func() float64 {
		if stats().State == playback.Playing {
			return 1
		}
		return 0
	})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP exposition handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Metrics available at http://%s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
