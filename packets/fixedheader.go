// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package packets

import (
	"bytes"
)

// FixedHeader contains the values of the fixed header portion of an MQTT packet.
type FixedHeader struct {
	Remaining int  // the number of bytes remaining after the fixed header.
	Type      byte // the control packet type from bits 7-4 of byte 1.
	Qos       byte // the quality of service of a publish.
	Dup       bool // indicates the packet is a redelivery attempt.
	Retain    bool // whether the message should be retained by the server.
}

// Encode writes the fixed header bytes, including the variable-length
// remaining length, to buf.
func (fh *FixedHeader) Encode(buf *bytes.Buffer) {
	buf.WriteByte(fh.Type<<4 | boolByte(fh.Dup)<<3 | fh.Qos<<1 | boolByte(fh.Retain))
	encodeLength(buf, fh.Remaining)
}

// Decode extracts the packet type and flag bits from the first header byte.
// Flag bits are only meaningful for a subset of packet types; for all others
// they are reserved and must be zero. [MQTT-2.2.2-1] [MQTT-2.2.2-2]
func (fh *FixedHeader) Decode(headerByte byte) error {
	fh.Type = headerByte >> 4

	switch fh.Type {
	case Publish:
		fh.Dup = (headerByte>>3)&0x01 > 0
		fh.Qos = (headerByte >> 1) & 0x03
		fh.Retain = headerByte&0x01 > 0
	case Pubrel, Subscribe, Unsubscribe:
		fh.Qos = (headerByte >> 1) & 0x03
	default:
		if headerByte&0x0f > 0 {
			return ErrInvalidFlags
		}
	}

	return nil
}

// encodeLength writes the remaining length as 1-4 bytes of 7-bit groups
// with continuation bits.
func encodeLength(buf *bytes.Buffer, length int) {
	for {
		digit := byte(length % 128)
		length /= 128
		if length > 0 {
			digit |= 0x80
		}
		buf.WriteByte(digit)
		if length == 0 {
			return
		}
	}
}
