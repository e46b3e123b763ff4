// Command producer runs the NDN streaming engine's publishing side: it
// loads configuration, wires the producer.Stream to an in-process
// content cache and LoopbackFace, feeds it synthetic frames on each
// configured thread, and exposes health/readiness/metrics HTTP
// endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcache "ndnrtc/internal/cache"
	"ndnrtc/internal/config"
	"ndnrtc/internal/core/ports"
	"ndnrtc/internal/core/producer"
	"ndnrtc/internal/devcodec"
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

	configPaths := []string{"configs/producer.yaml", "./configs/producer.yaml", "config.yaml"}
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

	freshness := producer.Freshness{
		MetaMs:  cfg.Producer.MetaFreshnessMs,
		DeltaMs: cfg.Producer.DeltaFreshnessMs,
		KeyMs:   cfg.Producer.KeyFreshnessMs,
	}

	stream := producer.New(cfg.Producer.Base, "stream0", netFace, devcodec.New(), signer, store, cfg.Producer.Identity, freshness, zlog.Raw())
	stream.Attach(producerObserver{log: log, metrics: collector, bus: bus})

	for _, th := range cfg.Producer.Threads {
		params := producer.ThreadParams{
			Name:             th.Name,
			SampleRateHz:     th.SampleRateHz,
			WireLen:          cfg.Producer.WireLen,
			ParityRatio:      cfg.Producer.ParityRatio,
			Policy:           producer.PolicyGop,
			GopSize:          th.GopSize,
			KeyInterval:      time.Duration(th.KeyIntervalMs) * time.Millisecond,
			MetaFreshnessMs:  cfg.Producer.MetaFreshnessMs,
			DeltaFreshnessMs: cfg.Producer.DeltaFreshnessMs,
			KeyFreshnessMs:   cfg.Producer.KeyFreshnessMs,
		}
		if err := stream.AddThread(params); err != nil {
			log.Fatalw("failed to add thread", "thread", th.Name, "error", err)
		}
		log.Infow("publishing thread", "thread", th.Name, "sample_rate_hz", th.SampleRateHz)
	}

	ctx, cancelCapture := context.WithCancel(context.Background())
	defer cancelCapture()
	if err := stream.Register(ctx); err != nil {
		log.Fatalw("failed to register stream prefix", "error", err)
	}
	go runSyntheticCapture(ctx, stream, cfg, log)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"uptime": time.Since(startTime).String(),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready", "cache_size": store.Size()})
	})
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"breaker_state": signer.BreakerState().String(),
			"cache_size":    store.Size(),
		})
	})
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
		log.Infof("starting producer server on %s", cfg.Server.Address)
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

	cancelCapture()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
	if bus != nil {
		_ = bus.Close()
	}
}

// runSyntheticCapture stands in for the capture device collaborator:
// it feeds OnRawFrame at the fastest configured thread rate, or every
// 33.3 ms when no thread is faster, the way a real capture executor would post completed
// frames onto the network executor.
func runSyntheticCapture(ctx context.Context, stream *producer.Stream, cfg *config.Config, log *zap.SugaredLogger) {
	periodMs := 33.3
	for _, th := range cfg.Producer.Threads {
		if th.SampleRateHz > 0 && 1000/th.SampleRateHz < periodMs {
			periodMs = 1000 / th.SampleRateHz
		}
	}
	ticker := time.NewTicker(time.Duration(periodMs * float64(time.Millisecond)))
	defer ticker.Stop()

	var seq int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			img := ports.RawImage{
				Width:        640,
				Height:       480,
				PixelFormat:  "raw",
				Data:         []byte(fmt.Sprintf("frame-%d-payload", seq)),
				CapturedAtMs: time.Now().UnixMilli(),
			}
			pbNo := stream.OnRawFrame(ctx, img)
			if pbNo < 0 {
				log.Debugw("frame dropped on every thread", "seq", seq)
			}
			seq++
		}
	}
}

type producerObserver struct {
	log     *zap.SugaredLogger
	metrics *monitoring.Collector
	bus     *eventbus.Bus
}

func (o producerObserver) OnFrameDropped(thread string) {
	o.metrics.RecordFrameDropped(thread)
}

func (o producerObserver) OnNewMeta(thread string, mv producer.MetaVersion) {
	o.log.Infow("new thread meta", "thread", thread, "version", mv.Version, "width", mv.Width, "height", mv.Height)
	if o.bus != nil {
		_ = o.bus.PublishNewMeta(context.Background(), "stream0", thread, eventbus.NewMetaPayload{
			Version: mv.Version,
			Codec:   mv.Codec,
			Width:   mv.Width,
			Height:  mv.Height,
			FpsHz:   mv.FpsHz,
		})
	}
}

func (o producerObserver) OnSignFailure(thread string, sampleNo uint64, err error) {
	o.log.Warnw("sign failure", "thread", thread, "sample_no", sampleNo, "error", err)
}
