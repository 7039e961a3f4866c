// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"sync"

	"github.com/telekom/netpath/pkg/checks"
)

var _ DB = (*InMemory)(nil)

// DB is the interface for storing and retrieving check results
type DB interface {
	// Save stores the result of a check run
	Save(result checks.ResultDTO)
	// Get returns the latest result of the check with the given name
	Get(check string) (result checks.Result, ok bool)
	// List returns the latest results of all checks
	List() map[string]checks.Result
}

// InMemory keeps the latest result per check in memory
type InMemory struct {
	mu   sync.RWMutex
	data map[string]checks.Result
}

// NewInMemory creates a new in-memory database
func NewInMemory() *InMemory {
	return &InMemory{
		data: make(map[string]checks.Result),
	}
}

func (i *InMemory) Save(result checks.ResultDTO) {
	if result.Result == nil {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	i.data[result.Name] = *result.Result
}

func (i *InMemory) Get(check string) (checks.Result, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	res, ok := i.data[check]
	return res, ok
}

func (i *InMemory) List() map[string]checks.Result {
	i.mu.RLock()
	defer i.mu.RUnlock()
	list := make(map[string]checks.Result, len(i.data))
	for name, res := range i.data {
		list[name] = res
	}
	return list
}
