// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package mtr

import (
	"context"
	"errors"
	"iter"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telekom/netpath/internal/probing"
	"github.com/telekom/netpath/pkg/checks"
)

type measurerFunc func(ctx context.Context, target string, cycles int, opts probing.Options) (iter.Seq[probing.CycleEvent], error)

func (f measurerFunc) Measure(ctx context.Context, target string, cycles int, opts probing.Options) (iter.Seq[probing.CycleEvent], error) {
	return f(ctx, target, cycles, opts)
}

func cycleSeq(events ...probing.CycleEvent) iter.Seq[probing.CycleEvent] {
	return func(yield func(probing.CycleEvent) bool) {
		for _, ev := range events {
			if !yield(ev) {
				return
			}
		}
	}
}

func TestCheck(t *testing.T) {
	finalStats := []probing.HopStats{
		{Number: 1, Addr: "192.0.2.1", Samples: 3, LossPercent: 0, Min: 10 * time.Millisecond, Max: 12 * time.Millisecond, Avg: 11 * time.Millisecond},
		{Number: 2, Addr: "192.0.2.10", Samples: 2, LossPercent: 33.33, Min: 20 * time.Millisecond, Max: 24 * time.Millisecond, Avg: 22 * time.Millisecond},
	}

	cases := []struct {
		name    string
		targets []string
		measure measurerFunc
		want    result
	}{
		{
			name:    "keeps final cycle summary",
			targets: []string{"192.0.2.10"},
			measure: func(_ context.Context, target string, _ int, _ probing.Options) (iter.Seq[probing.CycleEvent], error) {
				intermediate := []probing.HopStats{
					{Number: 1, Addr: "192.0.2.1", Samples: 1, Min: 10 * time.Millisecond, Max: 10 * time.Millisecond, Avg: 10 * time.Millisecond},
				}
				return cycleSeq(
					probing.CycleEvent{Summary: probing.CycleSummary{Target: target, Hops: intermediate}, Progress: 0.33},
					probing.CycleEvent{Summary: probing.CycleSummary{Target: target, Hops: finalStats}, Progress: 1.0},
				), nil
			},
			want: result{"192.0.2.10": finalStats},
		},
		{
			name:    "measurement fails before the first cycle",
			targets: []string{"no.such.host.invalid"},
			measure: func(_ context.Context, target string, _ int, _ probing.Options) (iter.Seq[probing.CycleEvent], error) {
				return nil, probing.ErrResolveTarget{Target: target, Err: errors.New("no such host")}
			},
			want: result{"no.such.host.invalid": {}},
		},
		{
			name:    "no targets configured",
			targets: nil,
			measure: func(_ context.Context, _ string, _ int, _ probing.Options) (iter.Seq[probing.CycleEvent], error) {
				t.Error("measure should not be called without targets")
				return nil, nil
			},
			want: result{},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := newMtr(t, Config{
				Targets:  c.targets,
				Interval: time.Minute,
				Cycles:   3,
				Options:  probing.DefaultOptions(),
			}, c.measure)

			res := m.check(t.Context())

			if !cmp.Equal(res, c.want) {
				diff := cmp.Diff(res, c.want)
				t.Errorf("unexpected result: +want -got\n%s", diff)
			}
		})
	}
}

func TestMtr_DefaultCycles(t *testing.T) {
	var gotCycles int
	m := newMtr(t, Config{
		Targets:  []string{"192.0.2.10"},
		Interval: time.Minute,
		Options:  probing.DefaultOptions(),
	}, func(_ context.Context, target string, cycles int, _ probing.Options) (iter.Seq[probing.CycleEvent], error) {
		gotCycles = cycles
		return cycleSeq(probing.CycleEvent{Summary: probing.CycleSummary{Target: target}, Progress: 1.0}), nil
	})

	m.check(t.Context())
	assert.Equal(t, DefaultCycles, gotCycles)
}

func TestMtr_UpdateConfig(t *testing.T) {
	m := newMtr(t, Config{Interval: time.Minute, Cycles: 3, Options: probing.DefaultOptions()}, nil)

	t.Run("accepts matching config", func(t *testing.T) {
		want := Config{
			Targets:  []string{"192.0.2.1"},
			Interval: 30 * time.Second,
			Cycles:   5,
			Options:  probing.DefaultOptions(),
		}
		require.NoError(t, m.UpdateConfig(&want))
		got, ok := m.GetConfig().(*Config)
		require.True(t, ok)
		assert.Equal(t, want, *got)
	})

	t.Run("rejects foreign config", func(t *testing.T) {
		err := m.UpdateConfig(&fakeRuntime{})
		var mismatch checks.ErrConfigMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, CheckName, mismatch.Expected)
	})
}

func TestMtr_Run(t *testing.T) {
	m := newMtr(t, Config{
		Targets:  []string{"192.0.2.10"},
		Interval: 10 * time.Millisecond,
		Cycles:   2,
		Options:  probing.DefaultOptions(),
	}, func(_ context.Context, target string, _ int, _ probing.Options) (iter.Seq[probing.CycleEvent], error) {
		return cycleSeq(probing.CycleEvent{
			Summary: probing.CycleSummary{
				Target: target,
				Hops:   []probing.HopStats{{Number: 1, Addr: target, Samples: 2}},
			},
			Progress: 1.0,
		}), nil
	})

	results := make(chan checks.ResultDTO, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.Run(t.Context(), results)
	}()

	select {
	case dto := <-results:
		assert.Equal(t, CheckName, dto.Name)
		require.NotNil(t, dto.Result)
		data, ok := dto.Result.Data.(result)
		require.True(t, ok)
		assert.Len(t, data["192.0.2.10"], 1)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a check result")
	}

	m.Shutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the check to shut down")
	}
}

func TestMtr_Schema(t *testing.T) {
	m := newMtr(t, Config{}, nil)
	schema, err := m.Schema()
	require.NoError(t, err)
	assert.NotNil(t, schema)
}

func newMtr(t testing.TB, cfg Config, measure measurerFunc) *Mtr {
	t.Helper()
	c, ok := NewCheck().(*Mtr)
	require.True(t, ok, "NewCheck should return an Mtr check")
	c.config = cfg
	if measure != nil {
		c.engine = measure
	}
	return c
}

type fakeRuntime struct{}

func (f *fakeRuntime) For() string     { return "fake" }
func (f *fakeRuntime) Validate() error { return nil }
