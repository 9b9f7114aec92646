// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package mqtt

import (
	"os"

	"log/slog"

	"github.com/rs/xid"
)

const (
	// defaultFrameQueueSize is the bound on the outbound frame queue.
	defaultFrameQueueSize = 128

	// defaultMessageSinkSize is the bound on the delivered message stream.
	defaultMessageSinkSize = 128
)

// Will contains the last will and testament details for a session.
type Will struct {
	Topic   string `yaml:"topic" json:"topic"`     // the topic the will message shall be sent to.
	Payload []byte `yaml:"payload" json:"payload"` // the message that shall be sent when the session ends unexpectedly.
	Qos     byte   `yaml:"qos" json:"qos"`         // the quality of service desired.
	Retain  bool   `yaml:"retain" json:"retain"`   // indicates whether the will message should be retained.
}

// Options contains the immutable parameters of a session, established at
// construction.
type Options struct {
	// ClientID is the client identifier presented in the connect packet.
	// An empty value is replaced by a generated id.
	ClientID string `yaml:"client_id" json:"client_id"`

	// Keepalive is the maximum outbound idle period in seconds before a
	// ping request is sent. 0 disables keepalive pings.
	Keepalive uint16 `yaml:"keepalive" json:"keepalive"`

	// CleanSession requests that the server discards any existing session
	// state for the client id.
	CleanSession bool `yaml:"clean_session" json:"clean_session"`

	// Will, if set, is registered with the server at connect.
	Will *Will `yaml:"will" json:"will"`

	// Username and Password are the optional connect credentials.
	Username []byte `yaml:"username" json:"username"`
	Password []byte `yaml:"password" json:"password"`

	// Capacity is the bound of the outbound frame queue. Enqueues block
	// when the queue is full.
	Capacity int `yaml:"capacity" json:"capacity"`

	// SinkCapacity is the bound of the delivered message stream.
	SinkCapacity int `yaml:"sink_capacity" json:"sink_capacity"`

	// Logger overrides the default structured logger.
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// ensureDefaults fills in any missing values.
func (o *Options) ensureDefaults() {
	if o.ClientID == "" {
		o.ClientID = xid.New().String()
	}

	if o.Capacity <= 0 {
		o.Capacity = defaultFrameQueueSize
	}

	if o.SinkCapacity <= 0 {
		o.SinkCapacity = defaultMessageSinkSize
	}

	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
	}
}
