// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"

	"github.com/telekom/netpath/internal/logger"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// basePort is the starting port for local probe sockets
	basePort = 30000
	// portRange is the range of ports to generate a random port from
	portRange = 10000
)

// randomPort returns a random port in the interval [30000, 40000)
func randomPort() int {
	return rand.N(portRange) + basePort // #nosec G404 // math.rand is fine here, we're not doing encryption
}

// randomIdent returns a random 16-bit echo identifier.
func randomIdent() uint16 {
	return uint16(rand.N(0x10000)) // #nosec G404 // math.rand is fine here, we're not doing encryption
}

// resolveName performs a reverse DNS lookup for the given IP address.
// If the lookup fails or returns no names, it returns an empty string.
func resolveName(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	ip := ipFromAddr(addr)
	if ip == nil {
		return ""
	}

	names, err := net.LookupAddr(ip.String())
	if err != nil || len(names) == 0 {
		return ""
	}
	return names[0]
}

// ipFromAddr extracts the IP address from a [net.Addr].
func ipFromAddr(addr net.Addr) net.IP {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP
	case *net.TCPAddr:
		return a.IP
	case *net.IPAddr:
		return a.IP
	}
	return nil
}

// addrString renders the responder address without port or zone.
func addrString(addr net.Addr) string {
	if ip := ipFromAddr(addr); ip != nil {
		return ip.String()
	}
	if addr == nil {
		return UnknownAddr
	}
	return addr.String()
}

// sameIP reports whether addr carries exactly the given IP.
func sameIP(addr net.Addr, ip net.IP) bool {
	got := ipFromAddr(addr)
	return got != nil && got.Equal(ip)
}

// wrapError wraps an error with a message and logs it.
// It also records the error in the current OpenTelemetry span.
func wrapError(ctx context.Context, err error, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	log := logger.FromContext(ctx)
	span := trace.SpanFromContext(ctx)
	caser := cases.Title(language.English)

	log.ErrorContext(ctx, caser.String(msg), append([]any{"error", err}, args...)...)
	span.SetStatus(codes.Error, fmt.Sprintf(msg+": %v", args...))
	span.RecordError(err)
	return fmt.Errorf("%s: %w", fmt.Sprintf(msg, args...), err)
}
