// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/telekom/netpath/internal/logger"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// errQueueListener is a listener for ICMP errors via the UDP socket error
// queue. It requires the UDP socket to have IP_RECVERR (or IPV6_RECVERR)
// enabled and works without NET_RAW capabilities.
type errQueueListener struct {
	conn    net.Conn
	rawConn syscall.RawConn
	version IPVersion
	// wantID is the probe identifier carried in the first four bytes of
	// the datagram payload. Error queue entries quoting another id are
	// skipped.
	wantID uint32
	oobBuf []byte
}

const (
	// oobBufSize is the size of the out-of-band buffer used for receiving extended error messages.
	oobBufSize = 512
	// dataBufSize is the size of the data buffer used for receiving messages.
	dataBufSize = 512
)

// newErrQueueListener wraps a UDP connection in an errQueueListener that
// reads ICMP errors from the kernel error queue for the given probe id.
func newErrQueueListener(conn net.Conn, version IPVersion, wantID uint32) (icmpListener, error) {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return nil, fmt.Errorf("the provided connection does not implement syscall.Conn: %T", conn)
	}

	rc, err := sc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("failed to get RawConn: %w", err)
	}

	return &errQueueListener{
		conn:    conn,
		rawConn: rc,
		version: version,
		wantID:  wantID,
		oobBuf:  make([]byte, oobBufSize),
	}, nil
}

// Read waits until an ICMP error for the probe id arrives or the context
// deadline passes.
func (l *errQueueListener) Read(ctx context.Context) (icmpReply, error) {
	log := logger.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return icmpReply{}, ctx.Err()
		default:
		}

		pkt, id, err := l.recvReply(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return icmpReply{}, err
			}
			log.DebugContext(ctx, "Failed to receive ICMP error", "error", err)
			continue
		}

		if id != l.wantID {
			log.DebugContext(ctx, "Received ICMP error for another probe, ignoring",
				"expectedId", l.wantID,
				"receivedId", id)
			continue
		}

		return *pkt, nil
	}
}

// recvReply performs a single Recvmsg(..., MSG_ERRQUEUE) and parses one
// ICMP error.
func (l *errQueueListener) recvReply(ctx context.Context) (*icmpReply, uint32, error) {
	deadline, ok := ctx.Deadline()
	if !ok || deadline.IsZero() {
		return nil, 0, context.Canceled
	}

	if err := l.conn.SetReadDeadline(deadline); err != nil {
		return nil, 0, fmt.Errorf("failed to set read deadline: %w", err)
	}

	var pkt *icmpReply
	var id uint32
	var opErr error
	err := l.rawConn.Read(func(fd uintptr) bool {
		msg, rerr := recvMsg(fd, l.oobBuf, unix.MSG_ERRQUEUE)
		if rerr != nil {
			opErr = rerr
			return true
		}

		id = msg.id
		pkt, opErr = parseExtendedErr(l.version, msg)
		return true
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read from raw connection: %w", err)
	}

	if opErr == nil {
		return pkt, id, nil
	}

	if errors.Is(opErr, unix.EAGAIN) || errors.Is(opErr, unix.EWOULDBLOCK) {
		// The socket error queue is empty.
		return nil, 0, context.DeadlineExceeded
	}

	return nil, 0, fmt.Errorf("failed to read ICMP error: %w", opErr)
}

// Close closes the underlying [net.Conn].
func (l *errQueueListener) Close() error {
	return l.conn.Close()
}

// socketMsg represents a message received from the socket error queue.
type socketMsg struct {
	// id is the probe identifier parsed from the returned payload.
	id uint32
	// oob is the out-of-band data received with the message.
	// This contains the extended error information from the kernel.
	oob []byte
}

// unixRecvMsg is a wrapper around the [unix.Recvmsg] function.
// It allows us to mock the function in tests.
var unixRecvMsg = unix.Recvmsg

// recvMsg receives a message from the socket error queue. The data buffer
// carries the payload of the original outgoing datagram, which starts
// with the probe identifier.
var recvMsg = func(fd uintptr, oob []byte, flags int) (*socketMsg, error) {
	dataBuf := make([]byte, dataBufSize)
	n, oobn, _, _, err := unixRecvMsg(int(fd), dataBuf, oob, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}

	if n < 4 {
		return nil, errors.New("returned payload too small for probe id")
	}

	return &socketMsg{
		id:  binary.BigEndian.Uint32(dataBuf),
		oob: oob[:oobn],
	}, nil
}

// parseExtendedErr decodes the IP_RECVERR (or IPV6_RECVERR) control
// message for both TimeExceeded and DestinationUnreachable errors. The
// responding router address is parsed from the offender sockaddr that
// follows the extended error structure.
var parseExtendedErr = func(version IPVersion, msg *socketMsg) (*icmpReply, error) {
	cms, err := unix.ParseSocketControlMessage(msg.oob)
	if err != nil {
		return nil, fmt.Errorf("failed to parse control messages: %w", err)
	}

	wantLevel, wantType := unix.SOL_IP, unix.IP_RECVERR
	timeExceededType := uint8(ipv4.ICMPTypeTimeExceeded)
	destUnreachType := uint8(ipv4.ICMPTypeDestinationUnreachable)
	portUnreachCode := uint8(icmpUnreachablePort)
	if version == IPv6 {
		wantLevel, wantType = unix.SOL_IPV6, unix.IPV6_RECVERR
		timeExceededType = uint8(ipv6.ICMPTypeTimeExceeded)
		destUnreachType = uint8(ipv6.ICMPTypeDestinationUnreachable)
		portUnreachCode = uint8(icmpv6UnreachablePort)
	}

	for _, cm := range cms {
		if cm.Header.Level != int32(wantLevel) || cm.Header.Type != int32(wantType) {
			continue
		}

		ee, err := newSockExtendedErr(cm.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode extended error: %w", err)
		}

		timeExceeded := ee.Type == timeExceededType
		destUnreachable := ee.Type == destUnreachType
		if !timeExceeded && !destUnreachable {
			return nil, fmt.Errorf("unexpected ICMP type %d with code %d", ee.Type, ee.Code)
		}

		return &icmpReply{
			from:    offenderAddr(cm.Data[minExtendedErrSize:]),
			reached: destUnreachable && ee.Code == portUnreachCode,
		}, nil
	}

	return nil, errors.New("no IP_RECVERR control message found")
}

// minExtendedErrSize is the minimum size of the extended error structure
// as defined in the Linux kernel documentation:
// https://man7.org/linux/man-pages/man7/ip.7.html
const minExtendedErrSize = 16

// newSockExtendedErr converts the first 16 bytes of an OOB buffer into a [unix.SockExtendedErr].
func newSockExtendedErr(data []byte) (unix.SockExtendedErr, error) {
	if len(data) < minExtendedErrSize {
		return unix.SockExtendedErr{}, fmt.Errorf("extended error too short: %d bytes", len(data))
	}

	return unix.SockExtendedErr{
		Errno:  binary.LittleEndian.Uint32(data[0:4]),
		Origin: data[4],
		Type:   data[5],
		Code:   data[6],
		Info:   binary.LittleEndian.Uint32(data[8:12]),
		Data:   binary.LittleEndian.Uint32(data[12:16]),
	}, nil
}

// offenderAddr parses the sockaddr of the host that generated the error,
// which the kernel places right after the extended error structure.
// Returns nil when no offender address was supplied.
func offenderAddr(data []byte) net.Addr {
	if len(data) < 2 {
		return nil
	}

	switch int(binary.NativeEndian.Uint16(data)) {
	case unix.AF_INET:
		if len(data) < 8 {
			return nil
		}
		ip := make(net.IP, net.IPv4len)
		copy(ip, data[4:8])
		return &net.IPAddr{IP: ip}
	case unix.AF_INET6:
		if len(data) < 24 {
			return nil
		}
		ip := make(net.IP, net.IPv6len)
		copy(ip, data[8:24])
		return &net.IPAddr{IP: ip}
	default:
		return nil
	}
}
