//go:build integration

package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bissquit/contentq/api/openapi"
	"github.com/bissquit/contentq/internal/config"
	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/domain"
	"github.com/bissquit/contentq/internal/pkg/httputil"
	"github.com/bissquit/contentq/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_PostgresStore(t *testing.T) {
	ctx := context.Background()

	pg, err := testutil.NewPostgresContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(context.Background()) })

	broker, err := testutil.NewRabbitMQContainer(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = broker.Terminate(context.Background()) })

	const secret = "integration-secret"

	cfg := config.Default()
	cfg.Database.Driver = config.DriverPostgres
	cfg.Database.URL = pg.ConnectionString
	cfg.Database.AutoMigrate = true
	cfg.Processor.Enabled = false
	cfg.Auth.JWTSecret = secret
	cfg.Broker.URL = broker.URL

	store, err := OpenStore(ctx, cfg.Database)
	require.NoError(t, err)

	app, err := NewWithStore(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), store)
	require.NoError(t, err)

	server := httptest.NewServer(app.Router())
	t.Cleanup(func() {
		server.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Shutdown(shutdownCtx)
	})

	token, err := httputil.IssueOperatorToken(secret, "integration", httputil.RoleOperator, time.Hour)
	require.NoError(t, err)
	client := testutil.NewClient(t, server.URL, testutil.NewOpenAPIValidator(t, openapi.Spec)).WithToken(token)

	resp := client.GET("/readyz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	var first, second domain.QueueItem
	resp = client.POST("/api/v1/queue", map[string]any{"title": "First Post"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	testutil.DecodeData(t, resp, &first)

	resp = client.POST("/api/v1/queue", map[string]any{"title": "Second Post"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	testutil.DecodeData(t, resp, &second)

	loc := app.Service().SpacingConfig(ctx).Location()
	assert.NotEqual(t,
		contentqueue.DateKey(*first.ScheduledAt, loc),
		contentqueue.DateKey(*second.ScheduledAt, loc),
	)

	resp = client.POST(testutil.Path("/api/v1/queue/%s/fail", first.ID), map[string]any{"message": "render failed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var failed domain.QueueItem
	testutil.DecodeData(t, resp, &failed)
	assert.Equal(t, domain.QueueStatusFailed, failed.Status)
	assert.Equal(t, 1, failed.RetryCount)

	resp = client.POST(testutil.Path("/api/v1/queue/%s/schedule", first.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	_ = resp.Body.Close()

	resp = client.GET("/api/v1/queue/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats contentqueue.QueueStats
	testutil.DecodeData(t, resp, &stats)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Scheduled)
}
