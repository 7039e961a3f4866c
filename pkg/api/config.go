// SPDX-FileCopyrightText: 2025 Deutsche Telekom IT GmbH
//
// SPDX-License-Identifier: Apache-2.0

package api

import "errors"

// ErrInvalidListeningAddress is returned when the listening address is invalid
var ErrInvalidListeningAddress = errors.New("invalid listening address")

// Config is the configuration for the api server
type Config struct {
	// ListeningAddress is the address the API server listens on
	ListeningAddress string `yaml:"address" mapstructure:"address"`
}

// Validate validates the api configuration
func (c *Config) Validate() error {
	if c.ListeningAddress == "" {
		return ErrInvalidListeningAddress
	}
	return nil
}
