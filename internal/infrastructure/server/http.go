package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"intellidraw/internal/infrastructure/logger"
)

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type HTTPServer struct {
	handler http.Handler
	cfg     Config
	logger  logger.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	ready    chan struct{}
	stopped  bool
}

var _ Server = (*HTTPServer)(nil)

func NewHTTPServer(handler http.Handler, cfg Config, logger logger.Logger) *HTTPServer {
	return &HTTPServer{
		handler: handler,
		cfg:     cfg,
		logger:  logger.WithField("component", "http"),
		ready:   make(chan struct{}),
	}
}

// Start listens on the configured address and serves until Stop is called.
func (h *HTTPServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.cfg.Addr)
	if err != nil {
		return err
	}

	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return ln.Close()
	}
	h.srv = &http.Server{
		Handler:      h.handler,
		ReadTimeout:  h.cfg.ReadTimeout,
		WriteTimeout: h.cfg.WriteTimeout,
		IdleTimeout:  h.cfg.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	h.listener = ln
	srv := h.srv
	h.mu.Unlock()
	close(h.ready)

	h.logger.Infof("HTTP server listening on %s", ln.Addr())

	var eg errgroup.Group
	eg.Go(func() error {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	return eg.Wait()
}

// Addr returns the bound address once Start has begun listening.
func (h *HTTPServer) Addr() net.Addr {
	<-h.ready
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.listener.Addr()
}

func (h *HTTPServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.stopped = true
	srv := h.srv
	h.mu.Unlock()
	if srv == nil {
		return nil
	}

	h.logger.Info("Shutting down HTTP server")
	return srv.Shutdown(ctx)
}
