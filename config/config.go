// Package config holds the synchronizer's tunables, grounded on the
// teacher's config.Config: a plain struct with mapstructure tags so it can
// be populated by viper from a TOML file or flags, plus Default/Test
// constructors and a ValidateBasic pass (config/config.go).
package config

import (
	"errors"
	"time"
)

// Config collects every tunable named in spec §2/§4/§6: cache capacity,
// delivery retry policy, and the two wire-size limits.
type Config struct {
	// MaxModifiersCacheSize bounds ModifiersCache (spec §4.3).
	MaxModifiersCacheSize int `mapstructure:"max_modifiers_cache_size"`

	// DeliveryTimeout is how long the DeliveryTracker waits for a Requested
	// id before firing CheckDelivery (spec §4.1).
	DeliveryTimeout time.Duration `mapstructure:"delivery_timeout"`

	// MaxDeliveryChecks bounds the number of re-expect attempts before an id
	// is dropped to Unknown (spec §4.1).
	MaxDeliveryChecks int `mapstructure:"max_delivery_checks"`

	// MaxInvObjects bounds how many ids an Inv/Request message may carry
	// (spec §4.5).
	MaxInvObjects int `mapstructure:"max_inv_objects"`

	// MaxPacketSize bounds a Modifiers message's total wire size (spec §4.5,
	// §6 OversizedMessage policy).
	MaxPacketSize int `mapstructure:"max_packet_size"`

	// SyncInterval is the minimum spacing between two sync-info sends to the
	// same peer (spec §4.2).
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// SyncStatusRefresh is the hard minimum gap enforced regardless of
	// SyncInterval, guarding against bursty re-handshakes (spec §4.2).
	SyncStatusRefresh time.Duration `mapstructure:"sync_status_refresh"`
}

// DefaultConfig returns sane production defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxModifiersCacheSize: 1024,
		DeliveryTimeout:       10 * time.Second,
		MaxDeliveryChecks:     5,
		MaxInvObjects:         512,
		MaxPacketSize:         2 << 20, // 2 MiB
		SyncInterval:          30 * time.Second,
		SyncStatusRefresh:     2 * time.Second,
	}
}

// TestConfig returns a configuration tuned for fast, deterministic tests.
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.DeliveryTimeout = 50 * time.Millisecond
	cfg.SyncInterval = 20 * time.Millisecond
	cfg.SyncStatusRefresh = time.Millisecond
	cfg.MaxModifiersCacheSize = 16
	return cfg
}

// ValidateBasic checks param bounds, mirroring the teacher's
// Config.ValidateBasic.
func (cfg *Config) ValidateBasic() error {
	if cfg.MaxModifiersCacheSize <= 0 {
		return errors.New("max_modifiers_cache_size must be positive")
	}
	if cfg.DeliveryTimeout <= 0 {
		return errors.New("delivery_timeout must be positive")
	}
	if cfg.MaxDeliveryChecks <= 0 {
		return errors.New("max_delivery_checks must be positive")
	}
	if cfg.MaxInvObjects <= 0 {
		return errors.New("max_inv_objects must be positive")
	}
	if cfg.MaxPacketSize <= 0 {
		return errors.New("max_packet_size must be positive")
	}
	if cfg.SyncInterval <= 0 {
		return errors.New("sync_interval must be positive")
	}
	if cfg.SyncStatusRefresh < 0 {
		return errors.New("sync_status_refresh can't be negative")
	}
	return nil
}
