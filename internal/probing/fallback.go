// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/telekom/netpath/internal/logger"
)

// toolTracer runs the platform path-discovery utility as a subprocess and
// parses its streamed output into the same event contract the raw-socket
// transports produce. It is the fallback for environments where raw
// sockets are denied.
type toolTracer struct {
	tool string

	lookPath func(file string) (string, error)
	// start launches the tool and returns its stdout stream and a wait
	// function reporting the captured stderr and exit error.
	start func(ctx context.Context, name string, args []string) (io.ReadCloser, func() (string, error), error)
}

// newToolTracer picks the platform utility: tracert on Windows,
// traceroute everywhere else.
func newToolTracer() *toolTracer {
	tool := "traceroute"
	if runtime.GOOS == "windows" {
		tool = "tracert"
	}
	return &toolTracer{
		tool:     tool,
		lookPath: exec.LookPath,
		start:    startCommand,
	}
}

// available reports whether the utility exists in the search path.
func (t *toolTracer) available() bool {
	_, err := t.lookPath(t.tool)
	return err == nil
}

// args builds the utility invocation for the target.
func (t *toolTracer) args(target net.IP, version IPVersion, opts Options) []string {
	var args []string
	if t.tool == "tracert" {
		args = []string{
			"-h", strconv.Itoa(opts.MaxHops),
			"-w", strconv.Itoa(int(opts.Timeout.Milliseconds())),
		}
		if version == IPv6 {
			args = append(args, "-6")
		}
		if !opts.ResolveHostnames {
			args = append(args, "-d")
		}
	} else {
		args = []string{
			"-m", strconv.Itoa(opts.MaxHops),
			"-w", fmt.Sprintf("%g", opts.Timeout.Seconds()),
		}
		if version == IPv6 {
			args = append(args, "-6")
		}
		if !opts.ResolveHostnames {
			args = append(args, "-n")
		}
	}
	return append(args, target.String())
}

// trace runs the utility and feeds parsed hops to yield, applying the
// same loop detection, progress and destination semantics as the
// raw-socket walk. A failure before the first parsed hop is fatal;
// trailing errors after at least one hop are tolerated.
func (t *toolTracer) trace(ctx context.Context, target net.IP, version IPVersion, opts Options, yield func(Event) bool) {
	log := logger.FromContext(ctx)

	stdout, wait, err := t.start(ctx, t.tool, t.args(target, version, opts))
	if err != nil {
		yield(terminalEvent(1, opts, ErrExternalTool{Tool: t.tool, Err: err}))
		return
	}

	// The walk can stop before the tool is done, when the destination
	// replies, a loop is detected or the consumer stops. The child still
	// has to be reaped on those paths.
	waited := false
	defer func() {
		_ = stdout.Close()
		if waited {
			return
		}
		if stderr, werr := wait(); werr != nil {
			log.DebugContext(ctx, "External tool reaped after early stop", "error", werr, "stderr", stderr)
		}
	}()

	count := 0
	visited := make(map[string]bool)
	targetAddr := target.String()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		hop, ok := parseToolLine(line)
		if !ok {
			continue
		}
		count++
		hop.Number = count
		hop.Reached = hop.Addr == targetAddr

		if !hop.Timeout {
			if visited[hop.Addr] {
				hop.Loop = true
			} else {
				visited[hop.Addr] = true
			}
		}

		log.DebugContext(ctx, hop.String())
		if !yield(Event{Hop: hop, Progress: progress(count, opts.MaxHops, hop.Reached), Reached: hop.Reached}) {
			return
		}
		if hop.Reached || hop.Loop {
			return
		}
	}

	waited = true
	stderr, werr := wait()
	if (werr != nil || stderr != "") && count == 0 {
		err := werr
		if err == nil {
			err = fmt.Errorf("%s", strings.TrimSpace(stderr))
		}
		yield(terminalEvent(1, opts, ErrExternalTool{Tool: t.tool, Err: err}))
		return
	}
	if werr != nil {
		// The tool often exits non-zero after the destination already
		// replied. Tolerable once hops were parsed.
		log.DebugContext(ctx, "External tool exited with error after parsing hops", "error", werr, "stderr", stderr)
	}
}

// startCommand launches the utility with a piped stdout and buffered
// stderr.
func startCommand(ctx context.Context, name string, args []string) (io.ReadCloser, func() (string, error), error) {
	cmd := exec.CommandContext(ctx, name, args...) // #nosec G204 // name is a fixed platform utility
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	return stdout, func() (string, error) {
		// The tool may still be probing further hops when the caller is
		// already done with it. Killing an exited process is a no-op, so
		// the kill only shortens the wait, it never changes the exit
		// status of a finished run.
		_ = cmd.Process.Kill()
		return stderr.String(), cmd.Wait()
	}, nil
}

// subMillisecond is the fixed round-trip time recorded for the tool's
// "under one millisecond" marker.
const subMillisecond = 500 * time.Microsecond

// parseToolLine parses one line of utility output into a hop record.
// Lines that do not start with a hop number (banners, headers, summary
// lines) report ok=false. Timing columns are averaged, the "<1 ms"
// marker counts as half a millisecond and timeout markers are skipped.
// A line whose timing columns are all timeout markers is a timeout hop.
func parseToolLine(line string) (Hop, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Hop{}, false
	}
	if _, err := strconv.Atoi(fields[0]); err != nil {
		return Hop{}, false
	}

	var (
		rtts     []time.Duration
		addr     string
		name     string
		prev     string
		timeouts int
	)

	for _, tok := range fields[1:] {
		switch {
		case tok == "*":
			timeouts++
		case strings.HasPrefix(tok, "<1"):
			rtts = append(rtts, subMillisecond)
		case strings.EqualFold(tok, "ms"):
			// Unit token of the preceding value.
		case addr == "" && isBracketedAddr(tok):
			addr = strings.Trim(tok, "[]")
			if host := strings.TrimSpace(tok[:strings.IndexByte(tok, '[')]); host != "" {
				name = host
			} else if prev != "" {
				name = prev
			}
		case addr == "" && isAddrToken(tok):
			addr = strings.Trim(tok, "[](),")
			if prev != "" {
				name = prev
			}
		default:
			if ms, err := strconv.ParseFloat(strings.TrimSuffix(tok, "ms"), 64); err == nil {
				rtts = append(rtts, time.Duration(ms*float64(time.Millisecond)))
				break
			}
			prev = tok
		}
	}

	hop := Hop{Addr: addr, Name: name}
	if hop.Name == "" {
		hop.Name = addr
	}

	if addr == "" {
		if timeouts == 0 && !strings.Contains(line, "timed out") {
			return Hop{}, false
		}
		hop.Addr = UnknownAddr
		hop.Name = UnknownAddr
		hop.Timeout = true
		return hop, true
	}

	if len(rtts) == 0 {
		hop.Timeout = true
		return hop, true
	}

	var sum time.Duration
	for _, rtt := range rtts {
		sum += rtt
	}
	hop.RTT = sum / time.Duration(len(rtts))
	return hop, true
}

// isBracketedAddr reports whether the token carries an address in
// brackets, optionally prefixed by the hostname.
func isBracketedAddr(tok string) bool {
	open := strings.IndexByte(tok, '[')
	closing := strings.IndexByte(tok, ']')
	if open < 0 || closing <= open {
		return false
	}
	return net.ParseIP(tok[open+1:closing]) != nil
}

// isAddrToken reports whether the token is a bare IPv4 or IPv6 literal.
func isAddrToken(tok string) bool {
	return net.ParseIP(strings.Trim(tok, "[](),")) != nil
}
