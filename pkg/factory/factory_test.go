// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telekom/netpath/internal/probing"
	"github.com/telekom/netpath/pkg/checks/mtr"
	"github.com/telekom/netpath/pkg/checks/runtime"
	"github.com/telekom/netpath/pkg/checks/trace"
)

func TestNewChecksFromConfig(t *testing.T) {
	cfg := runtime.Config{
		Trace: &trace.Config{
			Targets:  []string{"192.0.2.1"},
			Interval: time.Minute,
			Options:  probing.DefaultOptions(),
		},
		Mtr: &mtr.Config{
			Targets:  []string{"192.0.2.1"},
			Interval: time.Minute,
			Cycles:   5,
			Options:  probing.DefaultOptions(),
		},
	}

	cs, err := NewChecksFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, cs, 2)

	assert.Contains(t, cs, trace.CheckName)
	assert.Contains(t, cs, mtr.CheckName)
	assert.Equal(t, cfg.Trace, cs[trace.CheckName].GetConfig())
	assert.Equal(t, cfg.Mtr, cs[mtr.CheckName].GetConfig())
}

func TestNewChecksFromConfig_Empty(t *testing.T) {
	cs, err := NewChecksFromConfig(runtime.Config{})
	require.NoError(t, err)
	assert.Empty(t, cs)
}

func TestNewChecksFromConfig_Invalid(t *testing.T) {
	cfg := runtime.Config{
		Trace: &trace.Config{},
	}

	_, err := NewChecksFromConfig(cfg)
	assert.Error(t, err)
}

func TestNewCheck_NilConfig(t *testing.T) {
	_, err := newCheck(nil)
	assert.Error(t, err)
}
