// Command consumer runs the NDN streaming engine's fetch side: it loads
// configuration, wires a consumer.Consumer against a LoopbackFace,
// subscribes one thread, logs released samples, and exposes health/
// readiness/metrics/status HTTP endpoints plus a websocket feed of the
// observable surface.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	appcache "ndnrtc/internal/cache"
	"ndnrtc/internal/config"
	coreconsumer "ndnrtc/internal/core/consumer"
	"ndnrtc/internal/core/playback"
	"ndnrtc/internal/devsigner"
	"ndnrtc/internal/eventbus"
	"ndnrtc/internal/face"
	"ndnrtc/internal/logging"
	"ndnrtc/internal/monitoring"
	"ndnrtc/internal/resilience"
	"ndnrtc/internal/tracing"
)

func main() {
	startTime := time.Now()

	configPaths := []string{"configs/consumer.yaml", "./configs/consumer.yaml", "config.yaml"}
	var cfg *config.Config
	var err error
	for _, p := range configPaths {
		cfg, err = config.Load(p)
		if err == nil {
			break
		}
	}
	if cfg == nil {
		cfg = config.MustLoad("")
	}

	zlog, err := logging.New(cfg)
	if err != nil {
		panic(err)
	}
	defer zlog.Raw().Sync()
	log := zlog.Raw().Sugar()

	tp, err := tracing.Setup(cfg)
	if err != nil {
		log.Fatalw("failed to set up tracing", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(shutdownCtx)
	}()

	registry := prometheus.NewRegistry()
	collector := monitoring.New(registry)

	var bus *eventbus.Bus
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		bus = eventbus.New(rdb, "", cfg.Redis.Channel, zlog.Raw())
	}

	// This binary's own in-process store: LoopbackFace stands in for a
	// forwarder-mediated NetworkFace and only resolves
	// Interests a producer published into the same process's store. A
	// production deployment swaps this for a real forwarder-backed face
	// and drops the in-process store entirely.
	store := appcache.New(time.Duration(cfg.Producer.DeltaFreshnessMs) * time.Millisecond)
	defer store.Stop()
	netFace := face.New(store)

	secret := os.Getenv("NDNRTC_SIGNING_SECRET")
	if secret == "" {
		secret = "dev-only-shared-secret-change-me"
	}
	baseSigner, err := devsigner.New([]byte(secret))
	if err != nil {
		log.Fatalw("failed to build signer", "error", err)
	}
	signer := resilience.DefaultSigner(baseSigner)

	hub := newEventHub()

	var events coreconsumer.EventPublisher
	if bus != nil {
		events = bus
	}

	consumer := coreconsumer.New(netFace, signer, collector, events, zlog.Raw())

	threadName := "hi"
	if len(cfg.Producer.Threads) > 0 {
		threadName = cfg.Producer.Threads[0].Name
	}
	sampleRateHz := 30.0
	if len(cfg.Producer.Threads) > 0 {
		sampleRateHz = cfg.Producer.Threads[0].SampleRateHz
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session, err := consumer.Subscribe(ctx, coreconsumer.ThreadConfig{
		Base:             cfg.Producer.Base,
		Stream:           "stream0",
		Thread:           threadName,
		Identity:         cfg.Producer.Identity,
		IsVideo:          true,
		SampleRateHz:     sampleRateHz,
		InterestLifetime: time.Duration(cfg.Consumer.InterestLifetimeMs) * time.Millisecond,
		MaxIdle:          cfg.Consumer.StarvationTimeout,
		MaxRetransmits:   cfg.Consumer.MaxRetransmits,
		JitterTargetMs:   cfg.Consumer.JitterTargetMs,
		MaxWaitForHeadMs: cfg.Consumer.MaxWaitForHeadMs,
	})
	if err != nil {
		log.Fatalw("failed to subscribe", "thread", threadName, "error", err)
	}
	session.OnSample(func(s playback.Sample) {
		log.Debugw("sample released", "playback_no", s.PlaybackNo, "bytes", len(s.Payload))
		hub.broadcast(sampleEvent{PlaybackNo: s.PlaybackNo, TimestampMs: s.TimestampMs, Bytes: len(s.Payload)})
	})
	session.Start()

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "uptime": time.Since(startTime).String()})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"state":           session.State().String(),
			"buffer_occupied": session.Buffer().OccupiedCount(),
			"drd_original_ms": consumer.DRD().GetOriginalEstimation(),
			"drd_cached_ms":   consumer.DRD().GetCachedEstimation(),
			"breaker_state":   signer.BreakerState().String(),
		})
	})
	router.GET("/events", hub.serveWS)
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Infof("starting consumer server on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("received shutdown signal", "signal", sig)
	}

	session.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
	if bus != nil {
		_ = bus.Close()
	}
}

// sampleEvent is pushed to every connected /events websocket client on
// each playout release.
type sampleEvent struct {
	PlaybackNo  uint32 `json:"playback_no"`
	TimestampMs int64  `json:"timestamp_ms"`
	Bytes       int    `json:"bytes"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventHub fans out playout-release notifications to every connected
// websocket client, dropping a client that can't keep up rather than
// blocking playout.
type eventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan sampleEvent
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[*websocket.Conn]chan sampleEvent)}
}

func (h *eventHub) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	ch := make(chan sampleEvent, 32)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

func (h *eventHub) broadcast(ev sampleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			delete(h.clients, conn)
		}
	}
}
