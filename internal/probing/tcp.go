// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/telekom/netpath/internal/logger"
	"golang.org/x/sys/unix"
)

var _ prober = (*tcpProber)(nil)

// tcpProber opens TTL-bound TCP connections to the target port and reads
// the resulting ICMP errors from a raw socket. A completed handshake
// means the destination was reached.
type tcpProber struct {
	target  net.IP
	version IPVersion
	port    int

	dialTCP         func(ctx context.Context, addr net.Addr, version IPVersion, srcPort, ttl int, timeout time.Duration) (netConn, error)
	newICMPListener func(version IPVersion, wantPort int) (icmpListener, error)
}

// newTCPProber constructs a TCP prober for the target.
func newTCPProber(target net.IP, version IPVersion, port int) *tcpProber {
	return &tcpProber{
		target:          target,
		version:         version,
		port:            port,
		dialTCP:         dialTCP,
		newICMPListener: newRawListener,
	}
}

// probe dials the target once with the given TTL and waits up to wait for
// either a completed handshake or the ICMP error from the hop that
// dropped the segment.
func (p *tcpProber) probe(ctx context.Context, ttl int, wait time.Duration) (*probeResult, error) {
	log := logger.FromContext(ctx)

	// The listener must be in place before the SYN leaves: the kernel
	// fails the connect with EHOSTUNREACH because the ICMP error already
	// arrived, so a listener opened after the dial has missed the packet.
	srcPort := randomPort()
	il, err := p.newICMPListener(p.version, srcPort)
	if err != nil {
		return nil, err
	}
	defer func() { _ = il.Close() }()

	addr := &net.TCPAddr{IP: p.target, Port: p.port}
	start := time.Now()
	conn, err := p.dialTCP(ctx, addr, p.version, srcPort, ttl, wait)

	// Happiest path: we successfully established a TCP connection
	// to the target, which means we reached the destination.
	if err == nil {
		rtt := time.Since(start)
		_ = conn.Close()
		log.DebugContext(ctx, "TCP connection established", "port", conn.port, "addr", addr)
		return &probeResult{
			from:    &net.IPAddr{IP: p.target},
			rtt:     rtt,
			reached: true,
		}, nil
	}

	if errors.Is(err, unix.EADDRINUSE) {
		// The source port is taken, retry with a fresh port and a
		// listener filtering on it.
		_ = il.Close()
		return p.probe(ctx, ttl, wait)
	}

	if errors.Is(err, unix.EPERM) {
		return nil, ErrElevatedPermissions
	}

	// No route to host is expected behavior: the connection fails
	// because the TTL expired on the way.
	if !errors.Is(err, unix.EHOSTUNREACH) && !isTimeout(err) {
		return nil, fmt.Errorf("failed to dial TCP connection: %w", err)
	}

	ctx, cancel := context.WithDeadline(ctx, start.Add(wait))
	defer cancel()
	reply, rerr := il.Read(ctx)
	if rerr != nil {
		if errors.Is(rerr, context.DeadlineExceeded) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("failed to read ICMP message: %w", rerr)
	}

	log.DebugContext(ctx, "Received ICMP message", "port", reply.port, "routerAddr", reply.from)
	return &probeResult{
		from:    reply.from,
		rtt:     time.Since(start),
		reached: reply.reached,
	}, nil
}

// Close is a no-op since each probe opens and closes its own socket.
func (p *tcpProber) Close() error { return nil }

// dialTCP dials a TCP connection to the given address from the given
// source port with the specified TTL.
func dialTCP(ctx context.Context, addr net.Addr, version IPVersion, srcPort, ttl int, timeout time.Duration) (netConn, error) {
	// Dialer with control function to set IP_TTL
	dialer := net.Dialer{
		LocalAddr: &net.TCPAddr{
			Port: srcPort,
		},
		Timeout: timeout,
		ControlContext: func(_ context.Context, _, _ string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) {
				if version == IPv6 {
					opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, ttl) // #nosec G115
					return
				}
				opErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, ttl) // #nosec G115
			}); err != nil {
				return err
			}
			return opErr
		},
	}

	network := "tcp4"
	if version == IPv6 {
		network = "tcp6"
	}
	conn, err := dialer.DialContext(ctx, network, addr.String())
	if err != nil {
		return netConn{port: srcPort}, err
	}
	return netConn{Conn: conn, port: srcPort}, nil
}
