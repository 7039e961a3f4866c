// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/telekom/netpath/internal/probing"
	"github.com/telekom/netpath/pkg/checks/mtr"
	"github.com/telekom/netpath/pkg/checks/trace"
)

func TestConfig_Empty(t *testing.T) {
	assert.True(t, Config{}.Empty())
	assert.False(t, Config{Trace: &trace.Config{}}.Empty())
	assert.False(t, Config{Mtr: &mtr.Config{}}.Empty())
}

func TestConfig_Iter(t *testing.T) {
	cfg := Config{
		Trace: &trace.Config{Interval: time.Minute},
		Mtr:   &mtr.Config{Interval: time.Minute, Cycles: 5},
	}

	var names []string
	for rt := range cfg.Iter() {
		names = append(names, rt.For())
	}
	assert.Equal(t, []string{trace.CheckName, mtr.CheckName}, names)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Trace: &trace.Config{Interval: time.Minute, Options: probing.DefaultOptions()},
		Mtr:   &mtr.Config{Interval: time.Minute, Cycles: 5, Options: probing.DefaultOptions()},
	}
	assert.NoError(t, valid.Validate())

	invalid := Config{
		Trace: &trace.Config{},
		Mtr:   &mtr.Config{},
	}
	assert.Error(t, invalid.Validate())
}

func TestConfig_For(t *testing.T) {
	cfg := Config{Trace: &trace.Config{Interval: time.Minute}}

	assert.Equal(t, cfg.Trace, cfg.For(trace.CheckName))
	assert.Nil(t, cfg.For(mtr.CheckName))
	assert.Nil(t, cfg.For("unknown"))

	assert.True(t, cfg.HasCheck(trace.CheckName))
	assert.False(t, cfg.HasCheck(mtr.CheckName))
	assert.False(t, cfg.HasCheck("unknown"))
}
