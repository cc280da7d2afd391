// Package server provides process lifecycle management for the game server
// binary: ordered service startup, signal-driven shutdown and the periodic
// maintenance jobs that run beside the game loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Service is a long-running component. Start blocks until the service stops
// or fails; Stop makes a running Start return.
type Service interface {
	Start() error
	Stop()
}

// FuncService adapts a start/stop function pair into the Service interface.
type FuncService struct {
	StartFn func() error
	StopFn  func()
}

// Start calls the underlying start function.
func (f *FuncService) Start() error { return f.StartFn() }

// Stop calls the underlying stop function.
func (f *FuncService) Stop() { f.StopFn() }

// LoopService runs a context-driven loop such as the game server's Run.
// Stop cancels the loop's context and waits for it to return.
type LoopService struct {
	run     func(ctx context.Context) error
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started atomic.Bool
}

// NewLoopService wraps run.
//
// Precondition: run must return once its context is cancelled.
func NewLoopService(run func(ctx context.Context) error) *LoopService {
	ctx, cancel := context.WithCancel(context.Background())
	return &LoopService{run: run, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

// Start runs the loop until Stop is called. A LoopService runs at most once.
func (s *LoopService) Start() error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("loop service already started")
	}
	defer close(s.done)
	return s.run(s.ctx)
}

// Stop cancels the loop and waits for a running Start to return.
func (s *LoopService) Stop() {
	s.cancel()
	if s.started.Load() {
		<-s.done
	}
}

// HTTPService serves an http.Server and shuts it down gracefully on Stop.
type HTTPService struct {
	srv     *http.Server
	timeout time.Duration
	logger  *zap.Logger
}

// NewHTTPService wraps srv. timeout bounds the graceful shutdown.
func NewHTTPService(srv *http.Server, timeout time.Duration, logger *zap.Logger) *HTTPService {
	return &HTTPService{srv: srv, timeout: timeout, logger: logger}
}

// Start serves until Stop.
func (s *HTTPService) Start() error {
	s.logger.Info("http listener started", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving %s: %w", s.srv.Addr, err)
	}
	return nil
}

// Stop shuts the server down.
func (s *HTTPService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.String("addr", s.srv.Addr), zap.Error(err))
	}
}

// Lifecycle manages the startup and shutdown of multiple services.
// Services are started in order and stopped in reverse order.
type Lifecycle struct {
	logger   *zap.Logger
	services []namedService
	mu       sync.Mutex
}

type namedService struct {
	name    string
	service Service
}

// NewLifecycle creates a new Lifecycle manager.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		logger: logger,
	}
}

// Add registers a named service for lifecycle management.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// Run starts all services and blocks until SIGINT, SIGTERM, ctx cancellation
// or the first service failure, then stops every service in reverse order.
//
// Postcondition: All services are stopped and every Start has returned. The
// error of the first failed service is returned, nil otherwise.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	l.mu.Unlock()

	errCh := make(chan error, len(services))
	var running sync.WaitGroup
	for _, ns := range services {
		ns := ns
		running.Add(1)
		go func() {
			defer running.Done()
			l.logger.Info("starting service", zap.String("service", ns.name))
			svcStart := time.Now()
			if err := ns.service.Start(); err != nil {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
			}
		}()
	}

	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	var failure error
	select {
	case <-ctx.Done():
		l.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
	case failure = <-errCh:
		l.logger.Error("service error, shutting down", zap.Error(failure))
	}

	l.shutdown(services)
	running.Wait()

	l.logger.Info("shutdown complete",
		zap.Duration("total_uptime", time.Since(start)),
	)
	return failure
}

func (l *Lifecycle) shutdown(services []namedService) {
	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		ns := services[i]
		svcStart := time.Now()
		l.logger.Info("stopping service", zap.String("service", ns.name))
		ns.service.Stop()
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(svcStart)),
		)
	}
	l.logger.Info("all services stopped",
		zap.Duration("shutdown_elapsed", time.Since(shutdownStart)),
	)
}
