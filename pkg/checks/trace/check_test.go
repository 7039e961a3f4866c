// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package trace

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

type discovererFunc func(ctx context.Context, target string, opts probing.Options) (iter.Seq[probing.Event], error)

func (f discovererFunc) Discover(ctx context.Context, target string, opts probing.Options) (iter.Seq[probing.Event], error) {
	return f(ctx, target, opts)
}

func eventSeq(events ...probing.Event) iter.Seq[probing.Event] {
	return func(yield func(probing.Event) bool) {
		for _, ev := range events {
			if !yield(ev) {
				return
			}
		}
	}
}

func TestCheck(t *testing.T) {
	cases := []struct {
		name     string
		targets  []string
		discover discovererFunc
		want     result
	}{
		{
			name:    "success with reached target",
			targets: []string{"192.0.2.10"},
			discover: func(_ context.Context, target string, _ probing.Options) (iter.Seq[probing.Event], error) {
				return eventSeq(
					probing.Event{Hop: probing.Hop{Number: 1, Addr: "192.0.2.1", RTT: 10 * time.Millisecond}, Progress: 0.2},
					probing.Event{Hop: probing.Hop{Number: 2, Addr: target, RTT: 20 * time.Millisecond, Reached: true}, Progress: 1.0, Reached: true},
				), nil
			},
			want: result{
				"192.0.2.10": {
					{Number: 1, Addr: "192.0.2.1", RTT: 10 * time.Millisecond},
					{Number: 2, Addr: "192.0.2.10", RTT: 20 * time.Millisecond, Reached: true},
				},
			},
		},
		{
			name:    "transport failure keeps partial hops",
			targets: []string{"192.0.2.20"},
			discover: func(_ context.Context, _ string, _ probing.Options) (iter.Seq[probing.Event], error) {
				return eventSeq(
					probing.Event{Hop: probing.Hop{Number: 1, Addr: "192.0.2.1", RTT: 5 * time.Millisecond}, Progress: 0.2},
					probing.Event{Err: errors.New("send probe: network is down")},
				), nil
			},
			want: result{
				"192.0.2.20": {
					{Number: 1, Addr: "192.0.2.1", RTT: 5 * time.Millisecond},
				},
			},
		},
		{
			name:    "discovery fails before the first hop",
			targets: []string{"no.such.host.invalid"},
			discover: func(_ context.Context, target string, _ probing.Options) (iter.Seq[probing.Event], error) {
				return nil, probing.ErrResolveTarget{Target: target, Err: errors.New("no such host")}
			},
			want: result{
				"no.such.host.invalid": {},
			},
		},
		{
			name:    "no targets configured",
			targets: nil,
			discover: func(_ context.Context, _ string, _ probing.Options) (iter.Seq[probing.Event], error) {
				t.Error("discover should not be called without targets")
				return nil, nil
			},
			want: result{},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr := newTrace(t, Config{
				Targets:  c.targets,
				Interval: time.Minute,
				Options:  probing.DefaultOptions(),
			}, c.discover)

			res := tr.check(t.Context())

			if !cmp.Equal(res, c.want) {
				diff := cmp.Diff(res, c.want)
				t.Errorf("unexpected result: +want -got\n%s", diff)
			}
		})
	}
}

func TestTrace_UpdateConfig(t *testing.T) {
	tr := newTrace(t, Config{Interval: time.Minute, Options: probing.DefaultOptions()}, nil)

	t.Run("accepts matching config", func(t *testing.T) {
		want := Config{
			Targets:  []string{"192.0.2.1"},
			Interval: 30 * time.Second,
			Options:  probing.DefaultOptions(),
		}
		require.NoError(t, tr.UpdateConfig(&want))
		got, ok := tr.GetConfig().(*Config)
		require.True(t, ok)
		assert.Equal(t, want, *got)
	})

	t.Run("rejects foreign config", func(t *testing.T) {
		err := tr.UpdateConfig(&fakeRuntime{})
		var mismatch checks.ErrConfigMismatch
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, CheckName, mismatch.Expected)
	})
}

func TestTrace_Run(t *testing.T) {
	tr := newTrace(t, Config{
		Targets:  []string{"192.0.2.10"},
		Interval: 10 * time.Millisecond,
		Options:  probing.DefaultOptions(),
	}, func(_ context.Context, target string, _ probing.Options) (iter.Seq[probing.Event], error) {
		return eventSeq(
			probing.Event{Hop: probing.Hop{Number: 1, Addr: target, RTT: time.Millisecond, Reached: true}, Progress: 1.0, Reached: true},
		), nil
	})

	results := make(chan checks.ResultDTO, 1)
	done := make(chan error, 1)
	go func() {
		done <- tr.Run(t.Context(), results)
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

	tr.Shutdown()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the check to shut down")
	}
}

func TestTrace_Schema(t *testing.T) {
	tr := newTrace(t, Config{}, nil)
	schema, err := tr.Schema()
	require.NoError(t, err)
	assert.NotNil(t, schema)
}

func newTrace(t testing.TB, cfg Config, discover discovererFunc) *Trace {
	t.Helper()
	c, ok := NewCheck().(*Trace)
	require.True(t, ok, "NewCheck should return a Trace check")
	c.config = cfg
	if discover != nil {
		c.engine = discover
	}
	return c
}

type fakeRuntime struct{}

func (f *fakeRuntime) For() string     { return "fake" }
func (f *fakeRuntime) Validate() error { return nil }
