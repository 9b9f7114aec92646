// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

// Package config parses client configuration from json or yaml sources.
package config

import (
	"encoding/json"
	"errors"

	"gopkg.in/yaml.v3"

	mqtt "github.com/wiremq/client"
)

var ErrEmptyConfig = errors.New("no config data provided")

// Config is the structure of configuration data to be parsed from a
// config source.
type Config struct {
	// Address is the server address (host:port) to connect to.
	Address string `yaml:"address" json:"address"`

	// Options are the session parameters.
	Options mqtt.Options `yaml:"options" json:"options"`
}

// FromBytes unmarshals a byte slice of JSON or YAML config data into a
// session configuration.
func FromBytes(b []byte) (*Config, error) {
	c := new(Config)

	if len(b) == 0 {
		return nil, ErrEmptyConfig
	}

	if b[0] == '{' {
		err := json.Unmarshal(b, c)
		if err != nil {
			return nil, err
		}
	} else {
		err := yaml.Unmarshal(b, c)
		if err != nil {
			return nil, err
		}
	}

	return c, nil
}
