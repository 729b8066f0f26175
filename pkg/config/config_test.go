package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.NotEmpty(t, cfg.MySQLDSN)
	require.Equal(t, 30*time.Second, cfg.RefreshInterval)
	require.Equal(t, 5*time.Second, cfg.EvalInterval)
	require.Equal(t, 50, cfg.MaxAlertsPerUser)
	require.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TRACKER_REFRESH_INTERVAL", "10s")
	t.Setenv("TRACKER_KAFKA_BROKERS", "kafka1:9092, kafka2:9092")
	t.Setenv("TRACKER_MAX_ALERTS_PER_USER", "5")

	cfg := Load()
	require.Equal(t, 10*time.Second, cfg.RefreshInterval)
	require.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 5, cfg.MaxAlertsPerUser)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("TRACKER_EVAL_INTERVAL", "soon")
	t.Setenv("TRACKER_NODE_ID", "abc")

	cfg := Load()
	require.Equal(t, 5*time.Second, cfg.EvalInterval)
	require.Zero(t, cfg.NodeID)
}
