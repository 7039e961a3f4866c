// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package netpath

import "errors"

// ErrFinalShutdown is returned when netpath was shut down
var ErrFinalShutdown = errors.New("netpath was shut down")

// ErrShutdown holds any errors that may
// have occurred during shutdown of netpath
type ErrShutdown struct {
	errAPI     error
	errMetrics error
}

// HasError returns true if any of the errors are set
func (e ErrShutdown) HasError() bool {
	return e.errAPI != nil || e.errMetrics != nil
}
