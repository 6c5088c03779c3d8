// Package restserver serves station readings over HTTP and, optionally, the
// gRPC health checking protocol on the same port.
package restserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/soheilhy/cmux"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/chrissnell/tipstation/internal/log"
	"github.com/chrissnell/tipstation/internal/rain"
	"github.com/chrissnell/tipstation/internal/scheduler"
	"github.com/chrissnell/tipstation/internal/storage"
	"github.com/chrissnell/tipstation/internal/types"
	"github.com/chrissnell/tipstation/pkg/config"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// StateReader is the read side of station state the handlers need
type StateReader interface {
	History() []types.Snapshot
	TipState() rain.TipState
}

// JobStatusProvider reports scheduler bookkeeping
type JobStatusProvider interface {
	Status() []scheduler.JobStatus
}

// ReadinessReporter reports whether a peripheral is initialized
type ReadinessReporter interface {
	Ready() bool
}

// Deps are the collaborators the REST server reads from. Archive, Jobs,
// Sensors and Health are optional.
type Deps struct {
	Source  Source
	State   StateReader
	Archive *scheduler.Target
	Jobs    JobStatusProvider
	Sensors map[string]ReadinessReporter
	Health  *storage.HealthManager
}

// Controller represents the REST server controller
type Controller struct {
	cfg      *config.ConfigData
	deps     Deps
	location *time.Location
	logger   *zap.SugaredLogger
	handlers *Handlers

	Server       http.Server
	GRPCServer   *grpc.Server
	healthServer *health.Server
}

// NewController creates a new REST server controller
func NewController(cfg *config.ConfigData, deps Deps, logger *zap.SugaredLogger) (*Controller, error) {
	if deps.Source == nil || deps.State == nil {
		return nil, errors.New("REST server needs a reading source and station state")
	}

	ctrl := &Controller{
		cfg:      cfg,
		deps:     deps,
		location: cfg.Location(),
		logger:   logger,
	}
	ctrl.handlers = NewHandlers(ctrl)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	if cfg.REST.GRPCHealth {
		ctrl.healthServer = health.NewServer()
		ctrl.GRPCServer = grpc.NewServer()
		healthpb.RegisterHealthServer(ctrl.GRPCServer, ctrl.healthServer)
	}

	return ctrl, nil
}

// Handler returns the HTTP handler, for tests and embedding
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(c.logger))

	router.HandleFunc("/", c.handlers.GetLatest).Methods(http.MethodGet)
	router.HandleFunc("/history", c.handlers.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/history/summary", c.handlers.GetHistorySummary).Methods(http.MethodGet)
	router.HandleFunc("/data", c.handlers.GetData).Methods(http.MethodGet)
	router.HandleFunc("/status", c.handlers.GetStatus).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c.handlers.writeError(w, req, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		c.handlers.writeError(w, req, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

// Run listens and serves until ctx is cancelled. When gRPC health is enabled
// the listener is shared between HTTP/1 and gRPC with cmux.
func (c *Controller) Run(ctx context.Context) error {
	addr := net.JoinHostPort(c.cfg.REST.ListenAddr, strconv.Itoa(c.cfg.REST.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("REST server could not listen on %s: %w", addr, err)
	}
	c.logger.Infof("REST server listening on %s", addr)

	g, gctx := errgroup.WithContext(ctx)

	httpL := l
	if c.GRPCServer != nil {
		m := cmux.New(l)
		grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
		httpL = m.Match(cmux.Any())

		g.Go(func() error {
			if err := c.GRPCServer.Serve(grpcL); err != nil && gctx.Err() == nil {
				return fmt.Errorf("gRPC health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			if err := m.Serve(); err != nil && gctx.Err() == nil {
				return fmt.Errorf("connection multiplexer: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			c.syncGRPCHealth(gctx)
			return nil
		})
	}

	g.Go(func() error {
		if err := c.Server.Serve(httpL); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("REST server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		c.logger.Info("shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Server.Shutdown(shutdownCtx); err != nil {
			c.logger.Warnf("REST server shutdown: %v", err)
		}
		if c.GRPCServer != nil {
			c.healthServer.Shutdown()
			c.GRPCServer.Stop()
			l.Close()
		}
		return nil
	})

	return g.Wait()
}

// syncGRPCHealth mirrors component health into the gRPC health service
func (c *Controller) syncGRPCHealth(ctx context.Context) {
	c.updateGRPCHealth()
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.updateGRPCHealth()
		}
	}
}

func (c *Controller) updateGRPCHealth() {
	servingStatus := func(ok bool) healthpb.HealthCheckResponse_ServingStatus {
		if ok {
			return healthpb.HealthCheckResponse_SERVING
		}
		return healthpb.HealthCheckResponse_NOT_SERVING
	}

	c.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	c.healthServer.SetServingStatus("tipstation", healthpb.HealthCheckResponse_SERVING)

	sensorsReady := true
	for _, s := range c.deps.Sensors {
		sensorsReady = sensorsReady && s.Ready()
	}
	c.healthServer.SetServingStatus("sensors", servingStatus(sensorsReady))

	if c.deps.Health != nil {
		for name := range c.deps.Health.GetAllHealth() {
			c.healthServer.SetServingStatus(name, servingStatus(c.deps.Health.IsHealthy(name, 3*time.Minute)))
		}
	}
}
