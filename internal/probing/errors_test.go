// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package probing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrInvalidParameter(t *testing.T) {
	err := ErrInvalidParameter{Param: "maxHops", Reason: "must be between 1 and 255, got 0"}
	assert.Equal(t, `invalid parameter "maxHops": must be between 1 and 255, got 0`, err.Error())
	assert.ErrorIs(t, err, ErrInvalidParameter{})
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), ErrInvalidParameter{})
	assert.NotErrorIs(t, err, ErrResolveTarget{})
}

func TestErrResolveTarget(t *testing.T) {
	cause := errors.New("no such host")
	err := ErrResolveTarget{Target: "missing.example.com", Err: cause}
	assert.Contains(t, err.Error(), "missing.example.com")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrResolveTarget{})

	empty := ErrResolveTarget{Target: "empty.example.com"}
	assert.Contains(t, empty.Error(), "no addresses found")
}

func TestErrExternalTool(t *testing.T) {
	cause := errors.New("exit status 1")
	err := ErrExternalTool{Tool: "tracert", Err: cause}
	assert.Contains(t, err.Error(), "tracert")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrExternalTool{})
	assert.NotErrorIs(t, err, ErrElevatedPermissions)
}
