// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netpath

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/telekom/netpath/internal/logger"
	"github.com/telekom/netpath/pkg/api"
	"gopkg.in/yaml.v3"
)

// startupAPI registers the agent's routes and serves the API
func (n *Netpath) startupAPI(ctx context.Context) error {
	routes := []api.Route{
		{Method: http.MethodGet, Path: "/openapi", Handler: n.handleOpenAPI},
		{Method: http.MethodGet, Path: "/v1/checks", Handler: n.handleCheckResults},
		{Method: http.MethodGet, Path: "/v1/checks/{check}", Handler: n.handleCheckResult},
		{
			Method: http.MethodGet,
			Path:   "/metrics",
			Handler: promhttp.HandlerFor(
				n.metrics.GetRegistry(),
				promhttp.HandlerOpts{Registry: n.metrics.GetRegistry()},
			).ServeHTTP,
		},
	}

	if err := n.api.RegisterRoutes(ctx, routes...); err != nil {
		return fmt.Errorf("failed to register api routes: %w", err)
	}
	return n.api.Run(ctx)
}

// handleOpenAPI serves the openapi document describing the
// result endpoints of the registered checks
func (n *Netpath) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	doc, err := n.controller.GenerateCheckSpecs(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to generate openapi document", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate openapi document")
		return
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		log.ErrorContext(ctx, "Failed to marshal openapi document", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to marshal openapi document")
		return
	}

	w.Header().Set("Content-Type", "text/yaml")
	if _, err := w.Write(b); err != nil {
		log.ErrorContext(ctx, "Failed to write response", "error", err)
	}
}

// handleCheckResult serves the latest result of a single check
func (n *Netpath) handleCheckResult(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "check")

	res, ok := n.db.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no result for check %q", name))
		return
	}

	writeJSON(r.Context(), w, res)
}

// handleCheckResults serves the latest results of all checks
func (n *Netpath) handleCheckResults(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, n.db.List())
}

func writeJSON(ctx context.Context, w http.ResponseWriter, data any) {
	log := logger.FromContext(ctx)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.ErrorContext(ctx, "Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
