package jacobi

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/unixpickle/dist-jacobi/collcomm"
	"github.com/unixpickle/dist-jacobi/simulator"
	"gopkg.in/yaml.v3"
)

// Exchange strategy names.
const (
	StrategyBlocking   = "blocking"
	StrategyOverlapped = "overlapped"
)

// Norm names.
//
// With NormRoots every worker contributes the square root
// of its own sum of squared changes, and the contributions
// are summed.
// With NormGlobal the raw sums are added and the root is
// taken once, which makes the norm independent of the
// number of workers.
// With NormMax the largest per-worker root is used.
const (
	NormRoots  = "roots"
	NormGlobal = "global"
	NormMax    = "max"
)

// Network kinds.
const (
	NetworkLink   = "link"
	NetworkRandom = "random"
)

// Config holds the immutable parameters of a run.
type Config struct {
	Workers   int     `yaml:"workers"`
	Threshold float64 `yaml:"threshold"`

	// MaxIterations caps the number of sweeps.
	// Zero means no cap.
	MaxIterations int `yaml:"max_iterations"`

	Strategy string `yaml:"strategy"`
	Norm     string `yaml:"norm"`

	// FlopTime is the virtual time charged per
	// floating-point operation of the kernel.
	FlopTime float64 `yaml:"flop_time"`

	Network NetworkConfig `yaml:"network"`
}

// NetworkConfig selects the simulated network.
type NetworkConfig struct {
	Kind    string  `yaml:"kind"`
	Latency float64 `yaml:"latency"`
	Rate    float64 `yaml:"rate"`
}

// DefaultConfig returns the configuration used when no
// file or flag overrides a field.
func DefaultConfig() Config {
	return Config{
		Workers:       4,
		Threshold:     0.001,
		MaxIterations: 100000,
		Strategy:      StrategyBlocking,
		Norm:          NormRoots,
		FlopTime:      collcomm.FlopTime,
		Network: NetworkConfig{
			Kind:    NetworkLink,
			Latency: 1e-4,
			Rate:    1e9,
		},
	}
}

// LoadConfig decodes a YAML configuration on top of
// DefaultConfig.
// Unknown fields are rejected.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks every field that can be checked without
// knowing the grid.
func (c Config) Validate() error {
	configErr := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
	}
	switch {
	case c.Workers < 1:
		return configErr("workers must be positive, got %d", c.Workers)
	case !(c.Threshold > 0) || math.IsInf(c.Threshold, 1):
		return configErr("threshold must be positive and finite, got %v", c.Threshold)
	case c.MaxIterations < 0:
		return configErr("max_iterations must not be negative, got %d", c.MaxIterations)
	case c.FlopTime < 0:
		return configErr("flop_time must not be negative, got %v", c.FlopTime)
	case c.Norm != NormRoots && c.Norm != NormGlobal && c.Norm != NormMax:
		return configErr("unknown norm %q", c.Norm)
	}
	if _, err := NewExchanger(c.Strategy); err != nil {
		return err
	}
	switch c.Network.Kind {
	case NetworkRandom:
	case NetworkLink:
		if c.Network.Latency < 0 || !(c.Network.Rate > 0) {
			return configErr("link network needs latency >= 0 and rate > 0")
		}
	default:
		return configErr("unknown network kind %q", c.Network.Kind)
	}
	return nil
}

func (n NetworkConfig) build() simulator.Network {
	if n.Kind == NetworkRandom {
		return simulator.RandomNetwork{}
	}
	return simulator.NewLinkNetwork(n.Latency, n.Rate)
}
