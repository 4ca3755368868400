package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/yonasBSD/freebsd-godate/internal/pool"
)

// BindRuntimeFlags wires flag > env > (nothing, since pool limits have
// no config-file key) precedence for the global parallelism overrides
// lists (network/cpu worker counts) onto flags, the way gendocs
// leaves viper otherwise idle for exactly this kind of layered-default
// lookup. Called once against a command's persistent flag set; v is
// returned so a caller can add further bindings (e.g. an explicit
// --version override) without this package needing to know about them.
func BindRuntimeFlags(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("FREEBSD_GODATE")

	if err := v.BindPFlag("network-workers", flags.Lookup("network-workers")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("cpu-workers", flags.Lookup("cpu-workers")); err != nil {
		return nil, err
	}
	if err := v.BindEnv("network-workers"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("cpu-workers"); err != nil {
		return nil, err
	}

	return v, nil
}

// RuntimeLimits reads the bound network/cpu worker overrides out of v,
// falling back to pool.DefaultLimits() for any value left at zero (the
// viper-unset sentinel for an int flag never explicitly passed).
func RuntimeLimits(v *viper.Viper) pool.Limits {
	limits := pool.DefaultLimits()
	if n := v.GetInt("network-workers"); n > 0 {
		limits.Network = n
	}
	if n := v.GetInt("cpu-workers"); n > 0 {
		limits.CPU = n
	}
	return limits
}
