package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/acer-hub/hubclient/internal/bus"
	"github.com/acer-hub/hubclient/internal/config"
	"github.com/acer-hub/hubclient/internal/health"
	"github.com/acer-hub/hubclient/internal/impact"
	"github.com/acer-hub/hubclient/internal/prefs"
	"github.com/acer-hub/hubclient/internal/session"
	"github.com/acer-hub/hubclient/internal/shell"
	"github.com/acer-hub/hubclient/internal/sse"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.Fatalf("error initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, close := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill, syscall.SIGTERM)
	defer close()

	store, err := cfg.OpenStore()
	if err != nil {
		logger.Fatal("Failed to open session store", zap.Error(err))
	}

	// Guard metrics are served from their own registry alongside the Go runtime ones
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	// Logouts and preference changes are both announced to the front end on /events
	logouts := bus.New[session.LogoutEvent]()
	changes := bus.New[prefs.Change]()
	events := bus.New[sse.Named]()
	bus.Forward(ctx, logouts, events, func(e session.LogoutEvent) sse.Named { return e })
	bus.Forward(ctx, changes, events, func(c prefs.Change) sse.Named { return c })

	apiClient := &http.Client{Timeout: cfg.APITimeout}
	guard := session.NewGuard(session.GuardConfig{
		BaseURL:    cfg.APIBaseURL,
		LoginURL:   cfg.LoginURL,
		Interval:   cfg.ValidationInterval,
		HTTPClient: apiClient,
		Metrics:    session.NewMetrics(registry),
	}, store, logouts, logger.Named("session"))

	notifier := prefs.NewNotifier(changes, cfg.DefaultLanguage, cfg.DefaultTheme)
	impactClient := impact.NewClient(cfg.APIBaseURL, guard.Client(cfg.APITimeout))
	viewers := shell.NewRegistry(impactClient, logger.Named("impact"))

	r := mux.NewRouter()
	shell.New(guard, notifier, viewers, logger.Named("shell")).RegisterRoutes(r)

	eventsHandler := sse.NewHandler(ctx, events, logger.Named("sse"))
	eventsHandler.OnConnectEventFunc = func() sse.Named { return notifier.Current() }
	r.Path("/events").Methods("GET").Handler(eventsHandler)
	r.Path("/health").Methods("GET").Handler(health.NewServer(guard, cfg.APIBaseURL, apiClient))
	r.Path("/metrics").Methods("GET").Handler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	handler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"content-type", "accept"},
		AllowCredentials: true,
	}).Handler(r)

	addr := cfg.ListenAddr()
	server := &http.Server{Addr: addr, Handler: handler}

	logger.Info("Listening", zap.String("addr", addr))
	var wg errgroup.Group
	wg.Go(server.ListenAndServe)
	wg.Go(func() error { return guard.Run(ctx) })

	<-ctx.Done()
	fmt.Printf("Received signal; closing server...\n")
	server.Shutdown(context.Background())
	logouts.Close()
	changes.Close()
	events.Close()

	err = wg.Wait()
	if err == http.ErrServerClosed {
		fmt.Printf("Server closed.\n")
	} else {
		logger.Fatal("Error running server", zap.Error(err))
	}
}
