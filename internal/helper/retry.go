// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package helper

import (
	"context"
	"time"
)

// RetryConfig configures the per-hop probe retries.
type RetryConfig struct {
	// Count is the number of attempts before giving up.
	Count int `json:"count" yaml:"count" mapstructure:"count"`
	// Delay is added to the wait deadline on every further attempt,
	// so later attempts wait longer for a reply.
	Delay time.Duration `json:"delay" yaml:"delay" mapstructure:"delay"`
}

// Effector will be the function called by the Retry function.
// The attempt index starts at 0 and increases by one per retry, letting the
// effector scale its own wait deadline with Deadline.
type Effector func(ctx context.Context, attempt int) error

// Retry will run the effector function until it succeeds or the configured
// number of attempts is exhausted. There is no sleep between attempts: the
// effector is expected to block with a bounded deadline itself.
func Retry(effector Effector, rc RetryConfig) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var err error
		for attempt := range rc.Count {
			if cErr := ctx.Err(); cErr != nil {
				return cErr
			}
			if err = effector(ctx, attempt); err == nil {
				return nil
			}
		}
		return err
	}
}

// Deadline returns the wait deadline for the given attempt:
// base plus step for every preceding attempt.
func Deadline(base, step time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	return base + time.Duration(attempt)*step
}
