package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStudioMetricsCounters(t *testing.T) {
	m := newStudioMetrics()
	m.register(prometheus.NewRegistry())

	m.RecordWebhook("subscription.updated", "applied", 20*time.Millisecond)
	m.RecordWebhook("subscription.updated", "applied", 10*time.Millisecond)
	m.RecordWebhook("", "ignored", time.Millisecond)
	m.AddCreditsDebited("avatar", 95)
	m.AddCreditsDebited("avatar", 95)
	m.RecordGeneration("combine", "validation_error")
	m.RecordAdminAdjustment()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("subscription.updated", "applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("unknown", "ignored")))
	assert.Equal(t, 190.0, testutil.ToFloat64(m.creditsDebited.WithLabelValues("avatar")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("combine", "validation_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adminAdjustments))
}

func TestGetIsSingleton(t *testing.T) {
	assert.Same(t, Get(), Get())
}
