// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// fakeListener implements [icmpListener] with a canned reply.
type fakeListener struct {
	reply icmpReply
	err   error
}

func (f *fakeListener) Read(_ context.Context) (icmpReply, error) {
	return f.reply, f.err
}

func (f *fakeListener) Close() error { return nil }

func TestUDPProber_Probe(t *testing.T) {
	router := &net.IPAddr{IP: net.IPv4(192, 0, 2, 1)}

	tests := []struct {
		name        string
		dialErr     error
		listener    icmpListener
		wantReached bool
		wantErr     error
	}{
		{
			name:     "intermediate hop replies",
			listener: &fakeListener{reply: icmpReply{from: router}},
		},
		{
			name:        "destination unreachable port means reached",
			listener:    &fakeListener{reply: icmpReply{from: router, reached: true}},
			wantReached: true,
		},
		{
			name:     "no reply within deadline",
			listener: &fakeListener{err: context.DeadlineExceeded},
			wantErr:  context.DeadlineExceeded,
		},
		{
			name:    "dialing without permissions",
			dialErr: unix.EPERM,
			wantErr: ErrElevatedPermissions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &udpProber{
				target:  net.IPv4(192, 0, 2, 10),
				version: IPv4,
				port:    DefaultPort,
				size:    DefaultPacketSize,
				dialUDP: func(_ context.Context, _ net.Addr, _ IPVersion, _ int, _ time.Duration) (netConn, error) {
					if tt.dialErr != nil {
						return netConn{}, tt.dialErr
					}
					return netConn{Conn: &fakeConn{}, port: 31337}, nil
				},
				newListener: func(_ net.Conn, _ IPVersion, _ uint32) (icmpListener, error) {
					return tt.listener, nil
				},
			}

			res, err := p.probe(t.Context(), 3, 50*time.Millisecond)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, router, res.from)
			assert.Equal(t, tt.wantReached, res.reached)
			assert.Greater(t, res.rtt, time.Duration(0))
		})
	}
}

func TestUDPProber_Probe_ListenerError(t *testing.T) {
	p := &udpProber{
		target:  net.IPv4(192, 0, 2, 10),
		version: IPv4,
		port:    DefaultPort,
		size:    DefaultPacketSize,
		dialUDP: func(_ context.Context, _ net.Addr, _ IPVersion, _ int, _ time.Duration) (netConn, error) {
			return netConn{Conn: &fakeConn{}, port: 31337}, nil
		},
		newListener: func(_ net.Conn, _ IPVersion, _ uint32) (icmpListener, error) {
			return nil, errors.New("socket gone")
		},
	}

	_, err := p.probe(t.Context(), 1, 50*time.Millisecond)
	assert.Error(t, err)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, isTimeout(context.DeadlineExceeded))
	assert.False(t, isTimeout(errors.New("nope")))
	assert.False(t, isTimeout(nil))
}
