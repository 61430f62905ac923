package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 900, cfg.Cache.TTLSeconds)
	assert.Equal(t, 128, cfg.Cache.MaxEntries)
	assert.Equal(t, 10, cfg.Agent.MaxTurns)
	assert.Equal(t, 5, cfg.API.UncachedPerMinute)
	assert.InDelta(t, 0.3, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL())
	assert.Equal(t, 10*time.Second, cfg.Pillars.Timeout())
}

func TestValidate_Rejections(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ttl", func(c *Config) { c.Cache.TTLSeconds = 0 }},
		{"negative ttl", func(c *Config) { c.Cache.TTLSeconds = -5 }},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"zero max turns", func(c *Config) { c.Agent.MaxTurns = 0 }},
		{"excessive max turns", func(c *Config) { c.Agent.MaxTurns = 64 }},
		{"zero pillar timeout", func(c *Config) { c.Pillars.TimeoutMillis = 0 }},
		{"bad port", func(c *Config) { c.API.Port = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetters(t *testing.T) {
	db := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "stocklens", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=stocklens sslmode=disable", db.GetDSN())

	r := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", r.GetRedisAddr())

	a := APIConfig{Host: "0.0.0.0", Port: 8081}
	assert.Equal(t, "0.0.0.0:8081", a.GetAPIAddr())
}
