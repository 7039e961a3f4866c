// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/telekom/netpath/internal/logger"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// icmpListener is an interface for reading ICMP messages.
type icmpListener interface {
	Read(ctx context.Context) (icmpReply, error)
	Close() error
}

// icmpReply represents a received ICMP message.
type icmpReply struct {
	// from is the address of the device (typically a router)
	// that sent the ICMP message in response to our probe.
	from net.Addr
	// port is the parsed destination port from the transport segment
	// quoted in the ICMP message. Zero for echo replies.
	port int
	// reached indicates whether the message means the destination was
	// reached: an echo reply, or a port-unreachable error.
	reached bool
}

// ICMP codes for Destination Unreachable messages.
// For more information, see:
// https://www.iana.org/assignments/icmp-parameters/icmp-parameters.xhtml#icmp-parameters-codes-3
const (
	// icmpUnreachablePort is the ICMP code for Destination Unreachable - "Port Unreachable" messages.
	icmpUnreachablePort = 3
	// icmpv6UnreachablePort is the ICMPv6 code for Destination Unreachable - "Port Unreachable" messages.
	icmpv6UnreachablePort = 4
)

// mtuSize is the read buffer size for raw ICMP sockets.
const mtuSize = 1500

// icmpProber sends ICMP echo requests with a per-probe TTL over a raw
// socket and matches the replies by echo identifier.
type icmpProber struct {
	conn    *icmp.PacketConn
	target  net.IP
	version IPVersion
	ident   uint16
	seq     uint16
	size    int
}

// newICMPProber opens the raw ICMP socket for the target's address family.
// Returns [ErrElevatedPermissions] when the socket is denied.
func newICMPProber(target net.IP, version IPVersion, size int) (*icmpProber, error) {
	network, listen := "ip4:icmp", "0.0.0.0"
	if version == IPv6 {
		network, listen = "ip6:ipv6-icmp", "::"
	}

	conn, err := icmp.ListenPacket(network, listen)
	if err != nil {
		if errors.Is(err, unix.EPERM) {
			return nil, ErrElevatedPermissions
		}
		return nil, fmt.Errorf("failed to create ICMP socket: %w", err)
	}

	return &icmpProber{
		conn:    conn,
		target:  target,
		version: version,
		ident:   randomIdent(),
		size:    size,
	}, nil
}

// probe sends one echo request with the given TTL and waits up to wait for
// a matching reply. A missing reply is reported as
// [context.DeadlineExceeded].
func (p *icmpProber) probe(ctx context.Context, ttl int, wait time.Duration) (*probeResult, error) {
	if err := p.setTTL(ttl); err != nil {
		return nil, fmt.Errorf("failed to set TTL %d: %w", ttl, err)
	}

	p.seq++
	start := time.Now()
	msg := echoRequest(p.version, p.ident, p.seq, p.size, start)
	if _, err := p.conn.WriteTo(msg, &net.IPAddr{IP: p.target}); err != nil {
		return nil, fmt.Errorf("failed to send echo request: %w", err)
	}

	deadline := start.Add(wait)
	reply, err := p.read(ctx, deadline)
	if err != nil {
		return nil, err
	}

	return &probeResult{
		from:    reply.from,
		rtt:     time.Since(start),
		reached: reply.reached,
	}, nil
}

func (p *icmpProber) setTTL(ttl int) error {
	if p.version == IPv6 {
		return p.conn.IPv6PacketConn().SetHopLimit(ttl)
	}
	return p.conn.IPv4PacketConn().SetTTL(ttl)
}

// read receives ICMP messages until one matches the prober's echo
// identifier or the deadline passes.
func (p *icmpProber) read(ctx context.Context, deadline time.Time) (*icmpReply, error) {
	log := logger.FromContext(ctx)
	if err := p.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	buf := make([]byte, mtuSize)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, src, err := p.conn.ReadFrom(buf)
		if err != nil {
			if os.IsTimeout(err) {
				return nil, context.DeadlineExceeded
			}
			return nil, fmt.Errorf("failed to read from ICMP socket: %w", err)
		}

		reply, ok := p.match(buf[:n], src)
		if !ok {
			log.DebugContext(ctx, "Received unrelated ICMP message, ignoring", "from", src)
			continue
		}
		return reply, nil
	}
}

// match decodes a received ICMP message and checks it against the
// prober's echo identifier. Echo replies must match on the identifier
// directly; error messages must quote an echo request carrying it.
func (p *icmpProber) match(data []byte, src net.Addr) (*icmpReply, bool) {
	proto := ipv4.ICMPTypeTimeExceeded.Protocol()
	if p.version == IPv6 {
		proto = ipv6.ICMPTypeTimeExceeded.Protocol()
	}
	msg, err := icmp.ParseMessage(proto, data)
	if err != nil {
		return nil, false
	}

	switch body := msg.Body.(type) {
	case *icmp.Echo:
		if msg.Type != ipv4.ICMPTypeEchoReply && msg.Type != ipv6.ICMPTypeEchoReply {
			return nil, false
		}
		if uint16(body.ID) != p.ident { // #nosec G115
			return nil, false
		}
		return &icmpReply{from: src, reached: true}, true

	case *icmp.TimeExceeded:
		if ident, ok := echoIdent(p.version, body.Data); !ok || ident != p.ident {
			return nil, false
		}
		return &icmpReply{from: src}, true

	case *icmp.DstUnreach:
		if ident, ok := echoIdent(p.version, body.Data); !ok || ident != p.ident {
			return nil, false
		}
		return &icmpReply{from: src}, true

	default:
		return nil, false
	}
}

// Close closes the raw ICMP socket.
func (p *icmpProber) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// rawListener is a listener for ICMP messages over a raw socket that
// matches messages by the destination port quoted in the error payload.
// It requires NET_RAW capabilities to be created successfully.
type rawListener struct {
	// conn is the ICMP packet connection used to listen for ICMP messages.
	conn *icmp.PacketConn
	// recvPort is the port we are interested in receiving ICMP messages for.
	recvPort int
}

// newRawListener creates a new [rawListener] for the given address family
// that reports ICMP errors quoting the given destination port.
// Returns [ErrElevatedPermissions] when the socket is denied.
func newRawListener(version IPVersion, wantPort int) (icmpListener, error) {
	network, listen := "ip4:icmp", "0.0.0.0"
	if version == IPv6 {
		network, listen = "ip6:ipv6-icmp", "::"
	}

	conn, err := icmp.ListenPacket(network, listen)
	if err != nil {
		if errors.Is(err, unix.EPERM) {
			return nil, ErrElevatedPermissions
		}
		return nil, fmt.Errorf("failed to create ICMP listener: %w", err)
	}

	return &rawListener{conn: conn, recvPort: wantPort}, nil
}

// Read receives ICMP messages on the listener's connection until it
// either receives a message quoting the expected port or the context
// deadline is exceeded.
func (l *rawListener) Read(ctx context.Context) (icmpReply, error) {
	log := logger.FromContext(ctx)

	for {
		select {
		case <-ctx.Done():
			return icmpReply{}, ctx.Err()
		default:
		}

		pkt, err := l.recvReply(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return icmpReply{}, err
			}
			log.DebugContext(ctx, "Failed to receive ICMP packet", "error", err)
			continue
		}

		if pkt.port != l.recvPort {
			log.DebugContext(ctx, "Received ICMP message for another port, ignoring",
				"expectedPort", l.recvPort,
				"receivedPort", pkt.port)
			continue
		}

		return *pkt, nil
	}
}

// recvReply reads the next ICMP packet from the listener's connection.
func (l *rawListener) recvReply(ctx context.Context) (*icmpReply, error) {
	deadline, ok := ctx.Deadline()
	if !ok || deadline.IsZero() {
		return nil, context.Canceled
	}

	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("failed to set read deadline: %w", err)
	}

	buf := make([]byte, mtuSize)
	n, src, err := l.conn.ReadFrom(buf)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, context.DeadlineExceeded
		}
		return nil, fmt.Errorf("failed to read from ICMP socket: %w", err)
	}

	msg, err := icmp.ParseMessage(ipv4.ICMPTypeTimeExceeded.Protocol(), buf[:n])
	if err != nil {
		return nil, fmt.Errorf("failed to parse ICMP message: %w", err)
	}

	return newICMPReply(src, msg)
}

// newICMPReply creates an ICMP reply record from a received ICMP error
// message and its source address.
func newICMPReply(src net.Addr, msg *icmp.Message) (*icmpReply, error) {
	// Extract the transport segment quoted in the ICMP message.
	// The segment comes after the IP header.
	var segment []byte
	switch msg.Type {
	case ipv4.ICMPTypeTimeExceeded:
		segment = msg.Body.(*icmp.TimeExceeded).Data[ipv4.HeaderLen:]
	case ipv4.ICMPTypeDestinationUnreachable:
		segment = msg.Body.(*icmp.DstUnreach).Data[ipv4.HeaderLen:]
	case ipv6.ICMPTypeTimeExceeded:
		segment = msg.Body.(*icmp.TimeExceeded).Data[ipv6.HeaderLen:]
	case ipv6.ICMPTypeDestinationUnreachable:
		segment = msg.Body.(*icmp.DstUnreach).Data[ipv6.HeaderLen:]
	default:
		return nil, fmt.Errorf("unexpected ICMP message type: %v", msg.Type)
	}

	// In the quoted segment, the first two bytes are the source port,
	// which is the local port we sent the probe from.
	if len(segment) < 2 {
		return nil, fmt.Errorf("quoted segment too short: %d bytes", len(segment))
	}

	srcPort := int(segment[0])<<8 + int(segment[1])
	unreachable := msg.Type == ipv4.ICMPTypeDestinationUnreachable || msg.Type == ipv6.ICMPTypeDestinationUnreachable

	return &icmpReply{
		from:    src,
		port:    srcPort,
		reached: unreachable && (msg.Code == icmpUnreachablePort || msg.Code == icmpv6UnreachablePort),
	}, nil
}

// Close closes the ICMP listener connection.
func (l *rawListener) Close() error {
	if l.conn != nil {
		return l.conn.Close()
	}
	return nil
}
