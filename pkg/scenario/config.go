// Copyright 2025 Robert Bosch GmbH
//
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/attack"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/bus"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/errors"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/security"
	"github.com/athish247/CAN-Ethernet-Gateway-Simulation/pkg/traffic"
)

// Duration wraps time.Duration for yaml scenario files ("250ms", "5s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.ErrScenarioConfig(fmt.Sprintf("invalid duration: %q", s))
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type BusConfig struct {
	Capacity       int      `yaml:"capacity"`
	Policy         string   `yaml:"policy"` // block | reject
	PublishTimeout Duration `yaml:"publishTimeout"`
	Poll           Duration `yaml:"poll"`
}

func (c *BusConfig) policy() (bus.Policy, error) {
	switch c.Policy {
	case "", "block":
		return bus.Block, nil
	case "reject":
		return bus.Reject, nil
	default:
		return bus.Block, errors.ErrScenarioConfig(fmt.Sprintf("unknown backpressure policy: %q", c.Policy))
	}
}

type SecurityConfig struct {
	Enabled   bool              `yaml:"enabled"`
	Keys      map[string]string `yaml:"keys"`
	AllowIds  []uint32          `yaml:"allowIds"`
	Window    Duration          `yaml:"window"`
	Threshold int               `yaml:"threshold"`
}

func (c *SecurityConfig) pipelineConfig() security.Config {
	keys := make(map[string][]byte, len(c.Keys))
	for src, key := range c.Keys {
		keys[src] = []byte(key)
	}
	return security.Config{
		Enabled:   c.Enabled,
		Keys:      keys,
		AllowIds:  c.AllowIds,
		Window:    c.Window.Std(),
		Threshold: c.Threshold,
	}
}

type TrafficConfig struct {
	Source     string   `yaml:"source"`
	Ids        []uint32 `yaml:"ids"`
	Rate       float64  `yaml:"rate"`
	Count      uint64   `yaml:"count"`
	PayloadLen int      `yaml:"payloadLen"`
	Fd         bool     `yaml:"fd"`
	Domain     string   `yaml:"domain"` // can | eth
}

func (c *TrafficConfig) generatorConfig(seed int64) (traffic.Config, error) {
	domain := traffic.DomainCan
	switch c.Domain {
	case "", "can":
	case "eth":
		domain = traffic.DomainEthernet
	default:
		return traffic.Config{}, errors.ErrScenarioConfig(fmt.Sprintf("unknown traffic domain: %q", c.Domain))
	}
	payloadLen := c.PayloadLen
	if payloadLen == 0 {
		payloadLen = 8
	}
	return traffic.Config{
		Source:     c.Source,
		Ids:        c.Ids,
		Rate:       c.Rate,
		Count:      c.Count,
		PayloadLen: payloadLen,
		Fd:         c.Fd,
		Domain:     domain,
		Seed:       seed,
	}, nil
}

type AttackConfig struct {
	Mode     string   `yaml:"mode"` // replay | spoof | dos
	Source   string   `yaml:"source"`
	Victim   string   `yaml:"victim"`
	Channel  uint32   `yaml:"channel"`
	Rate     float64  `yaml:"rate"`
	Delay    Duration `yaml:"delay"`
	Duration Duration `yaml:"duration"`
	Forge    bool     `yaml:"forge"`
	Capture  int      `yaml:"capture"`
	Key      string   `yaml:"key"` // compromised-ECU key material for dos
}

func (c *AttackConfig) mode() (attack.Mode, error) {
	switch c.Mode {
	case "replay":
		return attack.ModeReplay, nil
	case "spoof":
		return attack.ModeSpoof, nil
	case "dos":
		return attack.ModeDos, nil
	default:
		return 0, errors.ErrScenarioConfig(fmt.Sprintf("unknown attack mode: %q", c.Mode))
	}
}

// Config is one scenario run: buses, security posture, legitimate traffic and
// the attack workers contending with it.
type Config struct {
	Name     string   `yaml:"name"`
	Duration Duration `yaml:"duration"`
	Seed     int64    `yaml:"seed"`

	Bus      BusConfig       `yaml:"bus"`
	Security SecurityConfig  `yaml:"security"`
	Traffic  []TrafficConfig `yaml:"traffic"`
	Attacks  []AttackConfig  `yaml:"attacks"`

	Mirror string `yaml:"mirror"` // optional redis url
	Trace  string `yaml:"trace"`  // optional trace stream path
	Csv    string `yaml:"csv"`    // optional report path
}

func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.ErrScenarioConfig("scenario name not configured")
	}
	if c.Duration <= 0 {
		return errors.ErrScenarioConfig("scenario duration must be positive")
	}
	if c.Bus.Capacity <= 0 {
		return errors.ErrScenarioConfig("bus capacity must be positive")
	}
	if _, err := c.Bus.policy(); err != nil {
		return err
	}
	if len(c.Traffic) == 0 && len(c.Attacks) == 0 {
		return errors.ErrScenarioConfig("scenario has neither traffic nor attacks")
	}
	for i := range c.Attacks {
		if _, err := c.Attacks[i].mode(); err != nil {
			return err
		}
	}
	return nil
}

// Load reads and validates a yaml scenario file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError(err, "scenario file read failed")
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError(err, "scenario file parse failed")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
