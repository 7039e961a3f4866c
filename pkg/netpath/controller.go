// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netpath

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/telekom/netpath/internal/logger"
	"github.com/telekom/netpath/pkg/checks"
	"github.com/telekom/netpath/pkg/checks/runtime"
	"github.com/telekom/netpath/pkg/db"
	"github.com/telekom/netpath/pkg/factory"
	"github.com/telekom/netpath/pkg/netpath/metrics"
)

// ChecksController manages the lifecycle of the configured checks
type ChecksController struct {
	db      db.DB
	metrics metrics.Provider
	checks  runtime.Checks
	cResult chan checks.ResultDTO
	done    chan struct{}
}

// NewChecksController creates a new ChecksController
func NewChecksController(dbase db.DB, m metrics.Provider) *ChecksController {
	return &ChecksController{
		db:      dbase,
		metrics: m,
		checks:  runtime.Checks{},
		cResult: make(chan checks.ResultDTO, 8),
		done:    make(chan struct{}, 1),
	}
}

// Run periodically saves the check results to the database
// until the context is canceled or the controller is shut down
func (cc *ChecksController) Run(ctx context.Context) error {
	ctx, cancel := logger.NewContextWithLogger(ctx)
	defer cancel()
	log := logger.FromContext(ctx)

	for {
		select {
		case result := <-cc.cResult:
			cc.db.Save(result)
		case <-ctx.Done():
			log.ErrorContext(ctx, "Context canceled", "error", ctx.Err())
			return ctx.Err()
		case <-cc.done:
			log.InfoContext(ctx, "Checks controller shut down")
			return nil
		}
	}
}

// Shutdown stops all managed checks and the controller itself
func (cc *ChecksController) Shutdown(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.InfoContext(ctx, "Shutting down checks controller")

	for c := range cc.checks.Iter() {
		cc.UnregisterCheck(ctx, c)
	}
	cc.done <- struct{}{}
	close(cc.done)
}

// Reconcile reconciles the managed checks with the given runtime configuration.
// New checks are registered, removed checks are unregistered and existing
// checks are updated with their new configuration.
func (cc *ChecksController) Reconcile(ctx context.Context, cfg runtime.Config) {
	log := logger.FromContext(ctx)

	newChecks, err := factory.NewChecksFromConfig(cfg)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create checks from config", "error", err)
		return
	}

	for c := range cc.checks.Iter() {
		if !cfg.HasCheck(c.Name()) {
			cc.UnregisterCheck(ctx, c)
			continue
		}

		delete(newChecks, c.Name())
		if uErr := c.UpdateConfig(cfg.For(c.Name())); uErr != nil {
			log.ErrorContext(ctx, "Failed to update check config", "check", c.Name(), "error", uErr)
		}
	}

	for _, c := range newChecks {
		cc.RegisterCheck(ctx, c)
	}
}

// RegisterCheck registers the check's metric collectors and starts it
func (cc *ChecksController) RegisterCheck(ctx context.Context, check checks.Check) {
	log := logger.FromContext(ctx).With("check", check.Name())

	for _, collector := range check.GetMetricCollectors() {
		if err := cc.metrics.GetRegistry().Register(collector); err != nil {
			log.ErrorContext(ctx, "Failed to register metric collector", "error", err)
		}
	}

	cc.checks.Add(check)
	go func() {
		if err := check.Run(ctx, cc.cResult); err != nil {
			log.ErrorContext(ctx, "Failed to run check", "error", &ErrRunningCheck{Check: check, Err: err})
		}
	}()
}

// UnregisterCheck stops the check and unregisters its metric collectors
func (cc *ChecksController) UnregisterCheck(ctx context.Context, check checks.Check) {
	log := logger.FromContext(ctx).With("check", check.Name())
	log.DebugContext(ctx, "Unregistering check")

	for _, collector := range check.GetMetricCollectors() {
		cc.metrics.GetRegistry().Unregister(collector)
	}

	check.Shutdown()
	cc.checks.Delete(check)
}

var oapiBoilerplate = openapi3.T{
	OpenAPI: "3.0.0",
	Info: &openapi3.Info{
		Title:       "netpath metrics API",
		Description: "Serves the latest result of every configured check",
		Version:     "0.1.0",
	},
	Paths:      openapi3.NewPaths(),
	Components: &openapi3.Components{Schemas: make(openapi3.Schemas)},
}

// GenerateCheckSpecs generates the openapi document
// describing the result endpoints of the registered checks
func (cc *ChecksController) GenerateCheckSpecs(ctx context.Context) (openapi3.T, error) {
	log := logger.FromContext(ctx)
	doc := oapiBoilerplate
	for c := range cc.checks.Iter() {
		name := c.Name()
		ref, err := c.Schema()
		if err != nil {
			log.ErrorContext(ctx, "Failed to get schema for check", "check", name, "error", err)
			return openapi3.T{}, ErrCreateOpenapiSchema{name: name, err: err}
		}

		routeDesc := fmt.Sprintf("Returns the performance data for check %s", name)
		bodyDesc := fmt.Sprintf("Metrics for check %s", name)
		doc.Paths.Set("/v1/checks/"+name, &openapi3.PathItem{
			Description: routeDesc,
			Get: &openapi3.Operation{
				Description: routeDesc,
				Tags:        []string{"Checks", name},
				Responses: openapi3.NewResponses(
					openapi3.WithStatus(200, &openapi3.ResponseRef{
						Value: &openapi3.Response{
							Description: &bodyDesc,
							Content:     openapi3.NewContentWithSchemaRef(ref, []string{"application/json"}),
						},
					}),
				),
			},
		})
	}

	return doc, nil
}
