package config

import (
	"fmt"
	"math"
	"time"

	"collabcanvas/ink"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Discovery DiscoveryConfig
	Agent     AgentConfig
	Ink       InkConfig
	Log       LogConfig
}

type LogConfig struct {
	Level string
}

type ServerConfig struct {
	Address   string
	JWTSecret string `mapstructure:"jwtSecret"`
}

type RedisConfig struct {
	Addr string
}

type DatabaseConfig struct {
	URL string
}

type DiscoveryConfig struct {
	Service string
	Domain  string
	Timeout time.Duration
}

type AgentConfig struct {
	Address   string
	ServerURL string `mapstructure:"serverURL"` // empty means discover over mDNS
	Document  string
	CachePath string `mapstructure:"cachePath"`
	UIDir     string `mapstructure:"uiDir"`
}

type InkConfig struct {
	SmoothingWindow   int     `mapstructure:"smoothingWindow"`
	Tolerance         float64 `mapstructure:"tolerance"`
	MinimumPoints     int     `mapstructure:"minimumPoints"`
	ChaikinIterations int     `mapstructure:"chaikinIterations"`
}

// Validate checks the pipeline bounds.
func (c InkConfig) Validate() error {
	switch {
	case c.SmoothingWindow < 3:
		return fmt.Errorf("ink.smoothingWindow must be at least 3, got %d", c.SmoothingWindow)
	case !(c.Tolerance > 0) || math.IsInf(c.Tolerance, 0):
		return fmt.Errorf("ink.tolerance must be a positive number, got %v", c.Tolerance)
	case c.MinimumPoints < 1:
		return fmt.Errorf("ink.minimumPoints must be at least 1, got %d", c.MinimumPoints)
	case c.ChaikinIterations < 0:
		return fmt.Errorf("ink.chaikinIterations must not be negative, got %d", c.ChaikinIterations)
	}
	return nil
}

// InkOptions converts the ink block into pipeline options.
func (c *Config) InkOptions() ink.Options {
	return ink.Options{
		SmoothingWindow:   c.Ink.SmoothingWindow,
		Tolerance:         c.Ink.Tolerance,
		MinimumPoints:     c.Ink.MinimumPoints,
		ChaikinIterations: c.Ink.ChaikinIterations,
	}
}
