// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netpath

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/telekom/netpath/internal/logger"
	"github.com/telekom/netpath/pkg/api"
	"github.com/telekom/netpath/pkg/checks/runtime"
	"github.com/telekom/netpath/pkg/config"
	"github.com/telekom/netpath/pkg/db"
	"github.com/telekom/netpath/pkg/netpath/metrics"
)

const shutdownTimeout = time.Second * 90

// Netpath is the main struct of the netpath agent
type Netpath struct {
	// config is the startup configuration of the agent
	config *config.Config
	// db is the database used to store the check results
	db db.DB
	// api is the agent's API
	api api.API
	// loader is used to load the runtime configuration
	loader config.Loader
	// metrics is used to collect metrics
	metrics metrics.Provider
	// controller is used to manage the checks
	controller *ChecksController
	// cRuntime is used to signal that the runtime configuration has changed
	cRuntime chan runtime.Config
	// cErr is used to handle non-recoverable errors of the agent components
	cErr chan error
	// cDone is used to signal that the agent was shut down because of an error
	cDone chan struct{}
	// shutOnce is used to ensure that the shutdown function is only called once
	shutOnce sync.Once
}

// New creates a new netpath agent from a given config
func New(cfg *config.Config) *Netpath {
	m := metrics.New(cfg.Telemetry)
	dbase := db.NewInMemory()

	n := &Netpath{
		config:     cfg,
		db:         dbase,
		api:        api.New(cfg.Api),
		metrics:    m,
		controller: NewChecksController(dbase, m),
		cRuntime:   make(chan runtime.Config, 1),
		cErr:       make(chan error, 1),
		cDone:      make(chan struct{}, 1),
		shutOnce:   sync.Once{},
	}
	n.loader = config.NewLoader(cfg, n.cRuntime)

	return n
}

// Run starts the netpath agent
func (n *Netpath) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	log := logger.FromContext(ctx)
	defer cancel()

	err := n.metrics.InitTracing(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if iErr := metrics.RegisterInstanceInfo(
		n.metrics.GetRegistry(),
		n.config.Name,
		n.config.Metadata.Team.Name,
		n.config.Metadata.Team.Email,
		n.config.Metadata.Platform,
	); iErr != nil {
		log.WarnContext(ctx, "Failed to register instance info metric", "error", iErr)
	}

	go func() {
		n.cErr <- n.loader.Run(ctx)
	}()

	go func() {
		n.cErr <- n.startupAPI(ctx)
	}()

	go func() {
		n.cErr <- n.controller.Run(ctx)
	}()

	for {
		select {
		case cfg := <-n.cRuntime:
			n.controller.Reconcile(ctx, cfg)
		case <-ctx.Done():
			n.shutdown(ctx)
		case err := <-n.cErr:
			if err != nil {
				log.Error("Non-recoverable error in netpath component", "error", err)
				n.shutdown(ctx)
			}
		case <-n.cDone:
			log.InfoContext(ctx, "Netpath was shut down")
			return ErrFinalShutdown
		}
	}
}

// shutdown shuts down the agent and all managed components gracefully.
func (n *Netpath) shutdown(ctx context.Context) {
	errC := ctx.Err()
	log := logger.FromContext(ctx)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	n.shutOnce.Do(func() {
		log.InfoContext(ctx, "Shutting down netpath")
		var sErrs ErrShutdown
		sErrs.errAPI = n.api.Shutdown(ctx)
		sErrs.errMetrics = n.metrics.Shutdown(ctx)
		n.loader.Shutdown(ctx)
		n.controller.Shutdown(ctx)

		if sErrs.HasError() {
			log.ErrorContext(ctx, "Failed to shutdown gracefully", "contextError", errC, "errors", sErrs)
		}

		// Signal that shutdown is complete
		n.cDone <- struct{}{}
	})
}
