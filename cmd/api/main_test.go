package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/vocal-vent/internal/config"
	"github.com/wolfman30/vocal-vent/internal/notify"
	"github.com/wolfman30/vocal-vent/pkg/logging"
)

func TestSetupMetricsExposesSiteCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	handler, siteMetrics := setupMetrics(reg, reg)
	require.NotNil(t, handler)
	require.NotNil(t, siteMetrics)

	siteMetrics.ObserveSelection("package", "basic")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "vocalvent_flows_selections_total")
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	assert.Nil(t, connectPostgresPool(context.Background(), "", logging.Discard()))
}

func TestConnectRedis(t *testing.T) {
	logger := logging.Discard()
	assert.Nil(t, connectRedis(context.Background(), &appconfig.Config{}, logger))

	mr := miniredis.RunT(t)
	client := connectRedis(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logger)
	require.NotNil(t, client)
	_ = client.Close()

	addr := mr.Addr()
	mr.Close()
	assert.Nil(t, connectRedis(context.Background(), &appconfig.Config{RedisAddr: addr}, logger))
}

func TestSetupEmailSender(t *testing.T) {
	logger := logging.Discard()

	sender := setupEmailSender(context.Background(), &appconfig.Config{}, logger)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	sender = setupEmailSender(context.Background(), &appconfig.Config{
		SendGridAPIKey:    "SG.test",
		SendGridFromEmail: "noreply@vocalvent.com",
	}, logger)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	sender = setupEmailSender(context.Background(), &appconfig.Config{
		SESFromEmail:       "noreply@vocalvent.com",
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
	}, logger)
	assert.IsType(t, &notify.SESSender{}, sender)
}

func TestSetupDynamoPrefs(t *testing.T) {
	logger := logging.Discard()
	assert.Nil(t, setupDynamoPrefs(context.Background(), &appconfig.Config{}, logger))

	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	backend := setupDynamoPrefs(context.Background(), &appconfig.Config{
		PrefsDynamoTable:   "vocalvent-prefs",
		AWSRegion:          "us-east-1",
		AWSAccessKeyID:     "test",
		AWSSecretAccessKey: "test",
	}, logger)
	assert.NotNil(t, backend)
}
