// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/wiremq/client/system"
)

// defaultDialTimeout bounds connection establishment; a context deadline
// that falls earlier takes precedence.
const defaultDialTimeout = 30 * time.Second

// Dial opens a TCP connection to an MQTT server address (host:port).
func Dial(ctx context.Context, address string, info *system.Info) (*Conn, error) {
	d := net.Dialer{Timeout: defaultDialTimeout}
	c, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	return New(c, info), nil
}

// DialTLS opens a TLS connection to an MQTT server address (host:port).
func DialTLS(ctx context.Context, address string, config *tls.Config, info *system.Info) (*Conn, error) {
	d := tls.Dialer{
		NetDialer: &net.Dialer{Timeout: defaultDialTimeout},
		Config:    config,
	}
	c, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	return New(c, info), nil
}
