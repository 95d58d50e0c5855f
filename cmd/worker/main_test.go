package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ba-assist/ba-assist-backend/config"
)

func TestRun_ReturnsStartupError(t *testing.T) {
	cfg := &config.Config{
		Database: config.DatabaseConfig{DSN: "postgres://ba:ba@127.0.0.1:1/ba?sslmode=disable&connect_timeout=1"},
	}

	err := run(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "startup")
}
