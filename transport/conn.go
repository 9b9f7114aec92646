// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

// Package transport frames MQTT packets over a reliable byte stream.
package transport

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/wiremq/client/packets"
	"github.com/wiremq/client/system"
)

var ErrConnectionClosed = errors.New("connection not open")

// defaultBufferSize is the size of the buffered reader over the socket.
const defaultBufferSize = 1024 * 2

// Conn turns a net.Conn into a stream of decoded MQTT packets in one
// direction and a sink of encoded packets in the other.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader
	mu   sync.Mutex // guards writes so packets are never interleaved
	info *system.Info
	end  uint32 // ensure the close methods are only called once
}

// New wraps an established net.Conn. A nil info allocates a private
// counter set.
func New(c net.Conn, info *system.Info) *Conn {
	if info == nil {
		info = new(system.Info)
	}

	return &Conn{
		conn: c,
		r:    bufio.NewReaderSize(c, defaultBufferSize),
		info: info,
	}
}

// Info returns the counters the connection records into.
func (c *Conn) Info() *system.Info {
	return c.info
}

// ReadFixedHeader reads and decodes the next packet's fixed header. The
// remaining length can be up to 4 bytes; read through each byte looking for
// continuation values. [MQTT-2.2.3]
func (c *Conn) ReadFixedHeader(fh *packets.FixedHeader) error {
	b, err := c.r.ReadByte()
	if err != nil {
		return err
	}

	err = fh.Decode(b)
	if err != nil {
		return err
	}

	var rem, mult, n int
	for i := 0; ; i++ {
		if i == 4 {
			return packets.ErrOversizedLengthIndicator
		}

		b, err = c.r.ReadByte()
		if err != nil {
			return err
		}

		rem |= int(b&0x7f) << mult
		mult += 7
		n++
		if b < 0x80 {
			break
		}
	}

	fh.Remaining = rem
	atomic.AddInt64(&c.info.BytesReceived, int64(1+n))

	return nil
}

// ReadPacket reads the next packet from the connection, blocking until one
// arrives or the connection fails. The returned error is terminal: the
// stream has ended and no further packets will be produced.
func (c *Conn) ReadPacket() (pk packets.Packet, err error) {
	err = c.ReadFixedHeader(&pk.FixedHeader)
	if err != nil {
		return
	}

	var buf []byte
	if pk.FixedHeader.Remaining > 0 {
		buf = make([]byte, pk.FixedHeader.Remaining)
		_, err = io.ReadFull(c.r, buf)
		if err != nil {
			return
		}
		atomic.AddInt64(&c.info.BytesReceived, int64(len(buf)))
	}

	switch pk.FixedHeader.Type {
	case packets.Connect:
		err = pk.ConnectDecode(buf)
	case packets.Connack:
		err = pk.ConnackDecode(buf)
	case packets.Publish:
		err = pk.PublishDecode(buf)
		if err == nil {
			atomic.AddInt64(&c.info.MessagesReceived, 1)
		}
	case packets.Puback:
		err = pk.PubackDecode(buf)
	case packets.Pubrec:
		err = pk.PubrecDecode(buf)
	case packets.Pubrel:
		err = pk.PubrelDecode(buf)
	case packets.Pubcomp:
		err = pk.PubcompDecode(buf)
	case packets.Subscribe:
		err = pk.SubscribeDecode(buf)
	case packets.Suback:
		err = pk.SubackDecode(buf)
	case packets.Unsubscribe:
		err = pk.UnsubscribeDecode(buf)
	case packets.Unsuback:
		err = pk.UnsubackDecode(buf)
	case packets.Pingreq, packets.Pingresp, packets.Disconnect:
	default:
		err = packets.ErrUnknownPacketType
	}
	if err != nil {
		return
	}

	atomic.AddInt64(&c.info.PacketsReceived, 1)

	return
}

// WritePacket encodes and writes a packet to the connection.
func (c *Conn) WritePacket(pk packets.Packet) error {
	if atomic.LoadUint32(&c.end) == 1 {
		return ErrConnectionClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	buf := new(bytes.Buffer)
	var err error
	switch pk.FixedHeader.Type {
	case packets.Connect:
		err = pk.ConnectEncode(buf)
	case packets.Connack:
		err = pk.ConnackEncode(buf)
	case packets.Publish:
		err = pk.PublishEncode(buf)
		if err == nil {
			atomic.AddInt64(&c.info.MessagesSent, 1)
		}
	case packets.Puback:
		err = pk.PubackEncode(buf)
	case packets.Pubrec:
		err = pk.PubrecEncode(buf)
	case packets.Pubrel:
		err = pk.PubrelEncode(buf)
	case packets.Pubcomp:
		err = pk.PubcompEncode(buf)
	case packets.Subscribe:
		err = pk.SubscribeEncode(buf)
	case packets.Suback:
		err = pk.SubackEncode(buf)
	case packets.Unsubscribe:
		err = pk.UnsubscribeEncode(buf)
	case packets.Unsuback:
		err = pk.UnsubackEncode(buf)
	case packets.Pingreq:
		err = pk.PingreqEncode(buf)
	case packets.Pingresp:
		err = pk.PingrespEncode(buf)
	case packets.Disconnect:
		err = pk.DisconnectEncode(buf)
	default:
		err = packets.ErrUnknownPacketType
	}
	if err != nil {
		return err
	}

	n, err := c.conn.Write(buf.Bytes())
	if err != nil {
		return err
	}

	atomic.AddInt64(&c.info.BytesSent, int64(n))
	atomic.AddInt64(&c.info.PacketsSent, 1)

	return nil
}

// Close closes the underlying connection. Safe to call more than once; any
// blocked ReadPacket returns with an error.
func (c *Conn) Close() error {
	if !atomic.CompareAndSwapUint32(&c.end, 0, 1) {
		return nil
	}

	return c.conn.Close()
}

// RemoteAddr returns the remote network address of the connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
