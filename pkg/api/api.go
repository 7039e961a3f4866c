// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/telekom/netpath/internal/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

var _ API = (*api)(nil)

// API is the interface for the netpath API server
type API interface {
	// Run serves the API until the context is canceled or Shutdown is called
	Run(ctx context.Context) error
	// Shutdown gracefully stops the API server
	Shutdown(ctx context.Context) error
	// RegisterRoutes registers the given routes on the API router
	RegisterRoutes(ctx context.Context, routes ...Route) error
}

// Route is a route of the API
type Route struct {
	// Path is the url path of the route
	Path string
	// Method is the http method of the route
	Method string
	// Handler handles requests for the route
	Handler http.HandlerFunc
}

type api struct {
	mu     sync.Mutex
	config Config
	router chi.Router
	server *http.Server
}

// New creates a new API server with the given configuration
func New(cfg Config) API {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.Middleware(context.Background()))
	return &api{
		config: cfg,
		router: r,
	}
}

// RegisterRoutes registers the given routes on the API router.
// Routes with an empty path or without a handler are rejected.
func (a *api) RegisterRoutes(ctx context.Context, routes ...Route) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	log := logger.FromContext(ctx)

	for _, route := range routes {
		if route.Path == "" || route.Handler == nil {
			return fmt.Errorf("invalid route %q: path and handler must be set", route.Path)
		}
		a.router.Method(route.Method, route.Path, route.Handler)
		log.DebugContext(ctx, "Registered route", "method", route.Method, "path", route.Path)
	}
	return nil
}

// Run serves the API on the configured listening address. It blocks until
// the context is canceled or the server fails.
func (a *api) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)

	a.mu.Lock()
	a.server = &http.Server{
		Addr:              a.config.ListeningAddress,
		Handler:           a.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	a.mu.Unlock()

	log.InfoContext(ctx, "Serving API", "address", a.config.ListeningAddress)
	cErr := make(chan error, 1)
	go func() {
		cErr <- a.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		if err := a.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown api server: %w", err)
		}
		return ctx.Err()
	case err := <-cErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	}
}

// Shutdown gracefully stops the API server
func (a *api) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return a.server.Shutdown(ctx)
}
