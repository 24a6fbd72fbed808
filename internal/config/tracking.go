package config

import (
	"time"
)

type TrackingConfig struct {
	DefaultSampleInterval time.Duration `yaml:"default_sample_interval"`
	DefaultMaxDuration    time.Duration `yaml:"default_max_duration"`
	DefaultRadiusMeters   float64       `yaml:"default_radius_meters"`
	SweepInterval         time.Duration `yaml:"sweep_interval"`
}

func loadTrackingConfig() *TrackingConfig {
	return &TrackingConfig{
		DefaultSampleInterval: getEnvAsDuration("TRACKING_SAMPLE_INTERVAL", 15*time.Second),
		DefaultMaxDuration:    getEnvAsDuration("TRACKING_MAX_DURATION", 4*time.Hour),
		DefaultRadiusMeters:   getEnvAsFloat64("TRACKING_DEFAULT_RADIUS_METERS", 100),
		SweepInterval:         getEnvAsDuration("TRACKING_SWEEP_INTERVAL", time.Minute),
	}
}
