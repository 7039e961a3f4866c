// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package mtr

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/telekom/netpath/internal/probing"
	"github.com/telekom/netpath/pkg/checks"
)

// DefaultCycles is the number of probing rounds an MTR run
// performs when none is configured.
const DefaultCycles = 10

// Config is the configuration for the MTR check
type Config struct {
	// Targets is a list of hosts to measure the route to.
	Targets []string `json:"targets" yaml:"targets" mapstructure:"targets"`
	// Interval is the interval at which to run the check.
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	// Cycles is the number of probing rounds per measurement.
	Cycles int `json:"cycles" yaml:"cycles" mapstructure:"cycles"`
	// Options are the probing options for the check.
	probing.Options `json:",inline" yaml:",inline" mapstructure:",squash"`
}

func (c *Config) For() string {
	return CheckName
}

func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return checks.ErrInvalidConfig{CheckName: CheckName, Field: "mtr.interval", Reason: "must be greater than 0"}
	}

	if c.Cycles < 1 {
		return checks.ErrInvalidConfig{CheckName: CheckName, Field: "mtr.cycles", Reason: "must be at least 1"}
	}

	if err := c.Options.Validate(); err != nil {
		return checks.ErrInvalidConfig{CheckName: CheckName, Field: "mtr.options", Reason: err.Error()}
	}

	for i, t := range c.Targets {
		ip := net.ParseIP(t)
		if ip != nil {
			continue
		}

		_, err := url.Parse(t)
		if err != nil {
			return checks.ErrInvalidConfig{CheckName: CheckName, Field: fmt.Sprintf("mtr.targets[%d]", i), Reason: "invalid url or ip"}
		}
	}
	return nil
}
