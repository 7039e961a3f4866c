// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/telekom/netpath/internal/logger"
	"golang.org/x/sys/unix"
)

var _ prober = (*udpProber)(nil)

// netConn is a probe connection bound to a known local port.
type netConn struct {
	net.Conn
	port int
}

// udpProber sends UDP datagrams with a per-probe TTL and reads the
// resulting ICMP errors from the kernel socket error queue. It works
// without NET_RAW capabilities.
type udpProber struct {
	target  net.IP
	version IPVersion
	port    int
	size    int

	// dialUDP abstracts the creation of a UDP socket with TTL configured
	dialUDP func(ctx context.Context, addr net.Addr, version IPVersion, ttl int, timeout time.Duration) (netConn, error)
	// newListener abstracts the error queue listener creation for tests.
	newListener func(conn net.Conn, version IPVersion, wantID uint32) (icmpListener, error)
}

// newUDPProber constructs a UDP prober for the target using the classic
// high-port probing scheme.
func newUDPProber(target net.IP, version IPVersion, port, size int) *udpProber {
	return &udpProber{
		target:      target,
		version:     version,
		port:        port,
		size:        size,
		dialUDP:     dialUDP,
		newListener: newErrQueueListener,
	}
}

// probe sends one UDP datagram with the given TTL and waits up to wait
// for the matching ICMP error. A missing reply is reported as
// [context.DeadlineExceeded].
func (p *udpProber) probe(ctx context.Context, ttl int, wait time.Duration) (*probeResult, error) {
	log := logger.FromContext(ctx)

	addr := &net.UDPAddr{IP: p.target, Port: p.port}
	nc, err := p.dialUDP(ctx, addr, p.version, ttl, wait)
	if err != nil {
		if errors.Is(err, unix.EPERM) {
			return nil, ErrElevatedPermissions
		}
		return nil, fmt.Errorf("failed to dial UDP connection: %w", err)
	}
	defer func() { _ = nc.Close() }()

	id := rand.Uint32() // #nosec G404 // math.rand is fine here, we're not doing encryption
	listener, err := p.newListener(nc.Conn, p.version, id)
	if err != nil {
		return nil, fmt.Errorf("failed creating error queue listener: %w", err)
	}

	start := time.Now()
	if _, werr := nc.Write(udpPayload(id, p.size, start)); werr != nil {
		return nil, fmt.Errorf("failed sending UDP probe: %w", werr)
	}

	ctx, cancel := context.WithDeadline(ctx, start.Add(wait))
	defer cancel()
	reply, err := listener.Read(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("failed to read ICMP error: %w", err)
	}

	log.DebugContext(ctx, "Received ICMP error", "routerAddr", reply.from, "reached", reply.reached)
	return &probeResult{
		from:    reply.from,
		rtt:     time.Since(start),
		reached: reply.reached,
	}, nil
}

// Close is a no-op since each probe opens and closes its own socket.
func (p *udpProber) Close() error { return nil }

// dialUDP sets up a UDP socket with the desired TTL and timeout parameters.
// We bind to a random local port so the kernel queues ICMP errors on this socket.
func dialUDP(ctx context.Context, addr net.Addr, version IPVersion, ttl int, timeout time.Duration) (netConn, error) {
	port := randomPort()
	dialer := net.Dialer{
		LocalAddr: &net.UDPAddr{Port: port},
		Timeout:   timeout,
		ControlContext: func(_ context.Context, _, _ string, c syscall.RawConn) error {
			var opErr error
			if err := c.Control(func(fd uintptr) {
				if version == IPv6 {
					opErr = errors.Join(
						unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, ttl), // #nosec G115
						unix.SetsockoptInt(int(fd), unix.SOL_IPV6, unix.IPV6_RECVERR, 1),             // #nosec G115
					)
					return
				}
				opErr = errors.Join(
					unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, ttl), // #nosec G115
					unix.SetsockoptInt(int(fd), unix.SOL_IP, unix.IP_RECVERR, 1),   // #nosec G115
				)
			}); err != nil {
				return err
			}
			return opErr
		},
	}

	network := "udp4"
	if version == IPv6 {
		network = "udp6"
	}
	conn, err := dialer.DialContext(ctx, network, addr.String())
	switch {
	case err == nil:
		return netConn{Conn: conn, port: port}, nil
	case errors.Is(err, unix.EADDRINUSE):
		// If the address is already in use,
		// we just retry with a new random port.
		return dialUDP(ctx, addr, version, ttl, timeout)
	default:
		return netConn{}, err
	}
}

// isTimeout reports whether the error is a network or context timeout.
func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err)
}
