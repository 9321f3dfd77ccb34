// cmd/api/main.go

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/nats-io/nats.go"

	"mapaeleitoral/internal/adapter/api"
	"mapaeleitoral/internal/adapter/events"
	"mapaeleitoral/internal/adapter/storage"
	"mapaeleitoral/internal/clock"
	"mapaeleitoral/internal/config"
	"mapaeleitoral/internal/domain/election"
	"mapaeleitoral/internal/domain/filter"
	"mapaeleitoral/internal/server"
	"mapaeleitoral/internal/service/auxiliary"
	"mapaeleitoral/internal/service/camera"
	"mapaeleitoral/internal/service/render"
	"mapaeleitoral/internal/service/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Initialize the election data source
	var source election.Source
	switch cfg.Source {
	case config.SourcePostgres:
		db, err := initDatabase(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()
		source = storage.NewElectionStore(db)
	default:
		client, err := api.NewClient(api.Config{
			BaseURL: cfg.API.BaseURL,
			Timeout: cfg.API.Timeout,
		})
		if err != nil {
			log.Fatalf("Failed to initialize results API client: %v", err)
		}
		source = client
	}
	log.Printf("Reading election data from %s", cfg.Source)

	// Session events go to NATS when configured
	var observers []session.Observer
	if cfg.NATS.URL != "" {
		natsConn, err := initNATS(cfg.NATS)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer natsConn.Close()
		observers = append(observers, events.NewPublisher(natsConn, cfg.NATS.EventsTopic))
	}

	// Initialize session manager
	sessionManager := session.NewManager(
		source,
		session.ManagerConfig{
			Session:       sessionConfig(cfg),
			IdleTimeout:   cfg.Sessions.IdleTimeout,
			SweepInterval: cfg.Sessions.SweepInterval,
			MaxSessions:   cfg.Sessions.MaxSessions,
		},
		clock.Real(),
		observers...,
	)

	// Initialize HTTP server
	httpServer := server.NewServer(cfg.Server, source, sessionManager)

	// Start HTTP server
	go func() {
		log.Printf("Starting HTTP server on %s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-shutdown
	log.Println("Shutdown signal received")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Graceful shutdown
	log.Println("Shutting down services...")

	// Shutdown HTTP server
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Close every map session
	if err := sessionManager.Shutdown(shutdownCtx); err != nil {
		log.Printf("Session manager shutdown error: %v", err)
	}

	log.Println("Shutdown complete")
}

// sessionConfig maps the environment settings onto the map pipeline
func sessionConfig(cfg config.Config) session.Config {
	sc := session.Config{
		Render: render.Config{
			ChunkBudget:  cfg.Render.ChunkBudget,
			ChunkPause:   cfg.Render.ChunkPause,
			MaxChunkSize: cfg.Render.MaxChunkSize,
			Heat: render.HeatConfig{
				CeilingRatio: cfg.Render.HeatCeilingRatio,
				MinOpacity:   cfg.Render.HeatMinOpacity,
				Radius:       cfg.Render.HeatRadius,
				Blur:         cfg.Render.HeatBlur,
				MaxZoom:      cfg.Render.HeatMaxZoom,
			},
			Cluster: render.ClusterConfig{
				Radius:          cfg.Render.ClusterRadius,
				MaxZoom:         cfg.Render.ClusterMaxZoom,
				SpiderLegLength: render.DefaultClusterConfig().SpiderLegLength,
			},
		},
		Camera: camera.Config{
			FlyToZoom:  cfg.View.FlyToZoom,
			FitPadding: cfg.Render.FitPadding,
			FitMaxZoom: cfg.Render.FitMaxZoom,
		},
		Auxiliary: auxiliary.Config{
			SearchMinLength: cfg.View.SearchMinLength,
		},
	}

	if cfg.View.DefaultViewEnabled {
		office, ok := filter.ParseOffice(cfg.View.DefaultOffice)
		if !ok {
			log.Fatalf("Invalid default view office %q", cfg.View.DefaultOffice)
		}
		sc.DefaultView = &filter.DefaultView{
			Year:      filter.Year(cfg.View.DefaultYear),
			Office:    office,
			Candidate: cfg.View.DefaultCandidate,
		}
	}

	return sc
}

// Initialize database connection
func initDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.MaxLifetime

	db, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	// Test connection
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return db, nil
}

// Initialize NATS connection
func initNATS(cfg config.NATSConfig) (*nats.Conn, error) {
	options := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Printf("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return nc, nil
}
