// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"errors"
	"fmt"
)

// ErrElevatedPermissions is returned when the operating system denies the
// raw or datagram socket a probe protocol needs.
var ErrElevatedPermissions = errors.New("probing: operation requires elevated permissions, run as root or with CAP_NET_RAW")

// ErrInvalidParameter is returned before any probing starts when a run
// option is out of range.
type ErrInvalidParameter struct {
	Param  string
	Reason string
}

func (e ErrInvalidParameter) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

func (e ErrInvalidParameter) Is(target error) bool {
	_, ok := target.(ErrInvalidParameter)
	return ok
}

// ErrResolveTarget is returned when the target name resolves to no usable
// address for the requested address family.
type ErrResolveTarget struct {
	Target string
	Err    error
}

func (e ErrResolveTarget) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to resolve target %q: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("failed to resolve target %q: no addresses found", e.Target)
}

func (e ErrResolveTarget) Unwrap() error { return e.Err }

func (e ErrResolveTarget) Is(target error) bool {
	_, ok := target.(ErrResolveTarget)
	return ok
}

// ErrExternalTool is returned by the external-tool fallback when the
// subprocess cannot be started or fails before producing a single hop.
type ErrExternalTool struct {
	Tool string
	Err  error
}

func (e ErrExternalTool) Error() string {
	return fmt.Sprintf("external tool %q failed: %v", e.Tool, e.Err)
}

func (e ErrExternalTool) Unwrap() error { return e.Err }

func (e ErrExternalTool) Is(target error) bool {
	_, ok := target.(ErrExternalTool)
	return ok
}
