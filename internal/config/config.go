// Package config wraps viper and loads the typed service settings.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config is a read-only view over hierarchical configuration.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	IsSet(key string) bool
	Sub(key string) Config
	Unmarshal(target any) error
}

// ViperConfig implements Config on a *viper.Viper. A nil viper behaves as
// an empty configuration.
type ViperConfig struct {
	v *viper.Viper
}

// Compile-time interface guard.
var _ Config = (*ViperConfig)(nil)

// New wraps v.
func New(v *viper.Viper) *ViperConfig {
	if v == nil {
		v = viper.New()
	}
	return &ViperConfig{v: v}
}

func (c *ViperConfig) GetString(key string) string          { return c.v.GetString(key) }
func (c *ViperConfig) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *ViperConfig) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *ViperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *ViperConfig) IsSet(key string) bool                { return c.v.IsSet(key) }

// Sub returns the subtree at key, or an empty Config if it does not exist.
func (c *ViperConfig) Sub(key string) Config {
	return New(c.v.Sub(key))
}

// Unmarshal decodes the whole configuration into target.
func (c *ViperConfig) Unmarshal(target any) error {
	return c.v.Unmarshal(target)
}
