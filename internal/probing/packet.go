// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// ICMP header constants shared by the codec and the probers.
const (
	icmpv4EchoRequest = 8
	icmpv6EchoRequest = 128

	// icmpHeaderLen is the fixed echo header: type, code, checksum, id, seq.
	icmpHeaderLen = 8
	// timestampLen is the length of the unix-nano send timestamp carried in
	// the payload.
	timestampLen = 8
)

// checksum computes the RFC 1071 internet checksum over data. Odd-length
// input is padded with a zero byte.
func checksum(data []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i:]))
	}
	if len(data)%2 != 0 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}
	return ^uint16(sum)
}

// echoPayload builds the echo payload: the send timestamp as unix
// nanoseconds followed by random padding up to size bytes. A size smaller
// than the timestamp is grown to fit it.
func echoPayload(size int, now time.Time) []byte {
	if size < timestampLen {
		size = timestampLen
	}
	payload := make([]byte, size)
	binary.BigEndian.PutUint64(payload, uint64(now.UnixNano()))
	_, _ = rand.Read(payload[timestampLen:])
	return payload
}

// echoRequest encodes an ICMP echo request for the given address family.
// For IPv4 the checksum is computed over the full message; for IPv6 it is
// left zero since the kernel fills in the pseudo-header checksum.
func echoRequest(version IPVersion, id, seq uint16, size int, now time.Time) []byte {
	payload := echoPayload(size-icmpHeaderLen, now)
	msg := make([]byte, icmpHeaderLen+len(payload))

	if version == IPv6 {
		msg[0] = icmpv6EchoRequest
	} else {
		msg[0] = icmpv4EchoRequest
	}
	msg[1] = 0
	binary.BigEndian.PutUint16(msg[4:], id)
	binary.BigEndian.PutUint16(msg[6:], seq)
	copy(msg[icmpHeaderLen:], payload)

	if version == IPv4 {
		binary.BigEndian.PutUint16(msg[2:], checksum(msg))
	}
	return msg
}

// udpPayload builds the datagram payload for a UDP probe: the probe id,
// the send timestamp and random padding. The size is the requested packet
// size minus the 8-byte UDP header, with a floor that fits id and
// timestamp.
func udpPayload(id uint32, size int, now time.Time) []byte {
	const udpHeaderLen = 8
	const minLen = 4 + timestampLen

	n := size - udpHeaderLen
	if n < minLen {
		n = minLen
	}
	payload := make([]byte, n)
	binary.BigEndian.PutUint32(payload, id)
	binary.BigEndian.PutUint64(payload[4:], uint64(now.UnixNano()))
	_, _ = rand.Read(payload[minLen:])
	return payload
}

// echoIdent extracts the echo identifier from an ICMP error payload that
// quotes the original datagram. data starts at the quoted IP header; the
// bool result is false when the quote is too short to carry the embedded
// echo header.
func echoIdent(version IPVersion, data []byte) (uint16, bool) {
	headerLen := ipv6HeaderLen
	if version == IPv4 {
		if len(data) < 1 {
			return 0, false
		}
		headerLen = int(data[0]&0x0f) * 4
	}
	// type, code, checksum, then the identifier.
	if len(data) < headerLen+6 {
		return 0, false
	}
	return binary.BigEndian.Uint16(data[headerLen+4:]), true
}

// ipv6HeaderLen is the fixed IPv6 header length quoted in ICMPv6 errors.
const ipv6HeaderLen = 40
