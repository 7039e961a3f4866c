// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/telekom/netpath/pkg/checks"
	"github.com/telekom/netpath/pkg/checks/mtr"
	"github.com/telekom/netpath/pkg/checks/trace"
)

func TestChecks_AddDelete(t *testing.T) {
	var cs Checks
	tr := trace.NewCheck()
	m := mtr.NewCheck()

	cs.Add(tr)
	cs.Add(m)
	assert.Len(t, slices.Collect(cs.Iter()), 2)

	cs.Delete(tr)
	remaining := slices.Collect(cs.Iter())
	assert.Len(t, remaining, 1)
	assert.Equal(t, mtr.CheckName, remaining[0].Name())

	cs.Delete(m)
	assert.Empty(t, slices.Collect(cs.Iter()))
}

func TestChecks_IterIsSnapshot(t *testing.T) {
	var cs Checks
	cs.Add(trace.NewCheck())

	seq := cs.Iter()
	cs.Add(mtr.NewCheck())

	var got []checks.Check
	for c := range seq {
		got = append(got, c)
	}
	assert.Len(t, got, 1, "iterator reflects the checks at creation time")
}
