// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPI_RegisterRoutes(t *testing.T) {
	a, ok := New(Config{ListeningAddress: ":8080"}).(*api)
	require.True(t, ok)

	err := a.RegisterRoutes(t.Context(), Route{
		Method: http.MethodGet,
		Path:   "/v1/checks/{check}",
		Handler: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/checks/trace", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_RegisterRoutes_Invalid(t *testing.T) {
	a := New(Config{ListeningAddress: ":8080"})

	assert.Error(t, a.RegisterRoutes(t.Context(), Route{Method: http.MethodGet, Path: "/x"}))
	assert.Error(t, a.RegisterRoutes(t.Context(), Route{Method: http.MethodGet, Handler: func(http.ResponseWriter, *http.Request) {}}))
}

func TestAPI_RunShutdown(t *testing.T) {
	a := New(Config{ListeningAddress: "localhost:38655"})

	done := make(chan error, 1)
	go func() {
		done <- a.Run(t.Context())
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, a.Shutdown(t.Context()))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the server to stop")
	}
}

func TestConfig_Validate(t *testing.T) {
	c := Config{ListeningAddress: ":8080"}
	assert.NoError(t, c.Validate())

	c = Config{}
	assert.ErrorIs(t, c.Validate(), ErrInvalidListeningAddress)
}
