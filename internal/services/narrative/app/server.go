// Package server wires the narrative runtime and gRPC lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/branching.ink/internal/platform/config"
	"github.com/louisbranch/branching.ink/internal/platform/timeouts"
	narrativeservice "github.com/louisbranch/branching.ink/internal/services/narrative/api/grpc/narrative"
	"github.com/louisbranch/branching.ink/internal/services/narrative/realtime"
	narrativesqlite "github.com/louisbranch/branching.ink/internal/services/narrative/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const envPrefix = config.EnvPrefix + "NARRATIVE_"

type serverEnv struct {
	DBPath     string `env:"DB_PATH"`
	SyncBuffer int    `env:"SYNC_BUFFER" envDefault:"64"`
}

func loadServerEnv() serverEnv {
	var cfg serverEnv
	if err := config.ParseEnvWithPrefix(&cfg, envPrefix); err != nil {
		log.Printf("narrative env: %v", err)
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "narrative.db")
	}
	if cfg.SyncBuffer <= 0 {
		cfg.SyncBuffer = 64
	}
	return cfg
}

// Server hosts the narrative gRPC API, its event hub and storage lifecycle.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	hub        *realtime.Hub
	store      *narrativesqlite.Store
}

// New creates a configured narrative server listening on the provided port.
func New(port int) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", port))
}

// NewWithAddr creates a configured narrative server for the provided address.
func NewWithAddr(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	env := loadServerEnv()
	store, err := openNarrativeStore(env.DBPath)
	if err != nil {
		_ = listener.Close()
		return nil, err
	}
	hub := realtime.NewHub(env.SyncBuffer)

	apiService, err := narrativeservice.NewService(narrativeservice.Config{Store: store, Hub: hub})
	if err != nil {
		hub.Close()
		_ = store.Close()
		_ = listener.Close()
		return nil, fmt.Errorf("create narrative service: %w", err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(narrativeservice.RequestContextUnaryInterceptor()),
		grpc.ChainStreamInterceptor(narrativeservice.RequestContextStreamInterceptor()),
	)
	healthServer := health.NewServer()
	narrativeservice.RegisterNarrativeServiceServer(grpcServer, apiService)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(narrativeservice.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		hub:        hub,
		store:      store,
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a narrative server until context cancellation.
func Run(ctx context.Context, port int) error {
	server, err := New(port)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the gRPC server until context cancellation.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("narrative server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		if s.health != nil {
			s.health.Shutdown()
		}
		// Open Subscribe streams only end once their subscriptions close.
		if s.hub != nil {
			s.hub.Close()
		}
		s.stopGracefully()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}

// stopGracefully waits for in-flight calls up to timeouts.Shutdown, then
// forces the server down.
func (s *Server) stopGracefully() {
	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	timer := time.NewTimer(timeouts.Shutdown)
	defer timer.Stop()
	select {
	case <-stopped:
	case <-timer.C:
		log.Printf("narrative server graceful stop timed out after %s", timeouts.Shutdown)
		s.grpcServer.Stop()
		<-stopped
	}
}

// Close releases narrative server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close narrative store: %v", err)
		}
	}
}

func openNarrativeStore(path string) (*narrativesqlite.Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := narrativesqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open narrative sqlite store: %w", err)
	}
	return store, nil
}
