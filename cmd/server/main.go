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

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/hikvision-bridge/internal/api"
	"github.com/technosupport/hikvision-bridge/internal/auth"
	"github.com/technosupport/hikvision-bridge/internal/config"
	"github.com/technosupport/hikvision-bridge/internal/middleware"
	"github.com/technosupport/hikvision-bridge/internal/nvr"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters"
	"github.com/technosupport/hikvision-bridge/internal/nvr/adapters/hikvision"
	"github.com/technosupport/hikvision-bridge/internal/ratelimit"
	"github.com/technosupport/hikvision-bridge/internal/tokens"
)

const serviceName = "hikvision-bridge"

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[ERROR] Config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Device
	client := hikvision.NewClient(cfg.Device.Target(), cfg.Device.Credential(), hikvision.Options{
		Timeout:            cfg.Device.Timeout,
		InsecureSkipVerify: !cfg.Device.VerifyTLS,
	})

	buildCtx, cancelBuild := context.WithTimeout(ctx, time.Minute)
	device, err := nvr.NewBuilder(client, cfg.Device.Credential()).Build(buildCtx)
	cancelBuild()
	if err != nil {
		cred := cfg.Device.Credential()
		log.Fatalf("[ERROR] Device setup failed for %s (credential %s): %v",
			cfg.Device.Target().BaseURL(), adapters.HashCredential(cred.Username, cred.Password), err)
	}

	store := nvr.NewEntityStore()
	nvr.RegisterEntities(device, store)

	// 2. Event bus
	bus := nvr.NewMultiPublisher()
	hub := nvr.NewHub()
	bus.Add("websocket", hub)

	if cfg.Publishers.NATS.URL != "" {
		nc, err := nats.Connect(cfg.Publishers.NATS.URL, nats.Name(serviceName), nats.MaxReconnects(-1))
		if err != nil {
			log.Printf("[WARN] NATS Connect Failed: %v. NATS publishing disabled.", err)
		} else {
			defer nc.Close()
			bus.Add("nats", nvr.NewNATSPublisher(nc, cfg.Publishers.NATS.Subject, cfg.Publishers.NATS.MaxRetries))
			log.Printf("[INFO] Connected to NATS at %s", cfg.Publishers.NATS.URL)
		}
	}

	var rdb *redis.Client
	if cfg.Publishers.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Publishers.Redis.Addr, Password: cfg.Publishers.Redis.Password})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("[WARN] Redis ping failed: %v. Publishing will retry per event.", err)
		}
		bus.Add("redis", nvr.NewRedisPublisher(rdb, cfg.Publishers.Redis.Channel))
	}

	if cfg.Publishers.MQTT.Broker != "" {
		mc := nvr.BuildMQTTClient(nvr.MQTTOptions{
			Broker:   cfg.Publishers.MQTT.Broker,
			ClientID: cfg.Publishers.MQTT.ClientID,
			Username: cfg.Publishers.MQTT.Username,
			Password: cfg.Publishers.MQTT.Password,
		})
		connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
		err := nvr.ConnectWithBackoff(connectCtx, mc, time.Second, 10*time.Second)
		cancelConnect()
		if err != nil {
			log.Printf("[WARN] MQTT Connect Failed: %v. MQTT publishing disabled.", err)
		} else {
			defer mc.Disconnect(250)
			mp := nvr.NewMQTTPublisher(mc, cfg.Publishers.MQTT.TopicPrefix, cfg.Publishers.MQTT.QoS)
			bus.Add("mqtt", mp)
			serial := device.SerialNo()
			store.OnChange(func(e nvr.Entity) {
				if err := mp.PublishState(serial, e); err != nil {
					log.Printf("[WARN] MQTT state %s: %v", e.UniqueID, err)
				}
			})
			for _, e := range store.List() {
				mp.PublishState(serial, e)
			}
		}
	}

	// 3. Notifications
	dispatcher := nvr.NewDispatcher(device, store, bus, cfg.Notifications.AutoResetTimeout)
	defer dispatcher.Close()

	if cfg.Notifications.SetAlarmServer {
		configureAlarmServer(ctx, client, device, cfg.Server.PublicBaseURL, cfg.Notifications.AlarmServerPath)
	}

	// 4. Services
	svc := nvr.NewService(client, device, store, nvr.NewSnapshotCache(cfg.SnapshotCache.Size, cfg.SnapshotCache.TTL))

	poller := nvr.NewPoller(client, device, store, cfg.Poller.Interval)
	poller.Start()
	defer poller.Stop()

	watcher := config.NewWatcher(*configPath, func(next *config.Config) {
		if next.Poller.Interval != poller.Interval() {
			log.Printf("[INFO] Poller interval %s -> %s", poller.Interval(), next.Poller.Interval)
			poller.SetInterval(next.Poller.Interval)
		}
	})
	watcher.Start(ctx)

	// 5. HTTP
	var revocations auth.TokenRevocations
	var limiter *middleware.ActionLimiter
	if rdb != nil {
		revocations = auth.NewRedisRevocations(rdb)
		limiter = middleware.NewActionLimiter(ratelimit.NewLimiter(rdb, "hikbridge:rl"), cfg.RateLimit.Actions)
	}

	router := api.NewRouter(api.RouterConfig{
		AlarmServerPath: cfg.Notifications.AlarmServerPath,
		Service:         svc,
		Dispatcher:      dispatcher,
		Hub:             hub,
		Auth:            middleware.NewJWTAuth(tokens.NewManager(cfg.Auth.JWTSigningKey), revocations),
		Limiter:         limiter,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("[INFO] Starting server on %s (alarm server path %s)", cfg.Server.Addr, cfg.Notifications.AlarmServerPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[ERROR] HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("[INFO] Shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[ERROR] Graceful shutdown error: %v", err)
	}
	dispatcher.Drain()
	log.Println("[INFO] Server stopped gracefully")
}

// configureAlarmServer points the device's HTTP notification host at this
// bridge unless it already does.
func configureAlarmServer(ctx context.Context, client *hikvision.Client, device *nvr.Device, baseURL, path string) {
	current, err := client.GetAlarmServer(ctx)
	if err != nil {
		log.Printf("[WARN] Alarm server read failed: %v", err)
	}
	if current != nil && current.PointsAt(baseURL, path) {
		device.SetAlarmServer(current)
		return
	}

	if err := client.SetAlarmServer(ctx, baseURL, path); err != nil {
		log.Printf("[ERROR] Alarm server update failed: %v", err)
		return
	}
	log.Printf("[ISAPI] Alarm server set to %s%s", baseURL, path)

	if updated, err := client.GetAlarmServer(ctx); err == nil {
		device.SetAlarmServer(updated)
	}
}
