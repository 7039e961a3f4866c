// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package mtr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/telekom/netpath/internal/probing"
)

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Targets:  []string{"192.0.2.1", "example.com"},
				Interval: time.Minute,
				Cycles:   10,
				Options:  probing.DefaultOptions(),
			},
		},
		{
			name: "missing interval",
			cfg: Config{
				Targets: []string{"192.0.2.1"},
				Cycles:  10,
				Options: probing.DefaultOptions(),
			},
			wantErr: true,
		},
		{
			name: "zero cycles",
			cfg: Config{
				Targets:  []string{"192.0.2.1"},
				Interval: time.Minute,
				Options:  probing.DefaultOptions(),
			},
			wantErr: true,
		},
		{
			name: "invalid probing options",
			cfg: Config{
				Targets:  []string{"192.0.2.1"},
				Interval: time.Minute,
				Cycles:   10,
				Options:  probing.Options{Protocol: "smoke-signal", MaxHops: 30, Timeout: time.Second, PacketSize: 64},
			},
			wantErr: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if c.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_For(t *testing.T) {
	c := Config{}
	assert.Equal(t, CheckName, c.For())
}
