// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package packets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// readUint16 extracts a big-endian uint16 from buf at offset.
func readUint16(buf []byte, offset int) (uint16, int, error) {
	if len(buf) < offset+2 {
		return 0, 0, ErrInsufficientBytes
	}

	return binary.BigEndian.Uint16(buf[offset : offset+2]), offset + 2, nil
}

// readByte extracts a single byte from buf at offset.
func readByte(buf []byte, offset int) (byte, int, error) {
	if len(buf) <= offset {
		return 0, 0, ErrInsufficientBytes
	}
	return buf[offset], offset + 1, nil
}

// readBytes extracts a 16-bit length-prefixed byte field from buf at offset.
func readBytes(buf []byte, offset int) ([]byte, int, error) {
	length, next, err := readUint16(buf, offset)
	if err != nil {
		return nil, 0, err
	}

	if next+int(length) > len(buf) {
		return nil, 0, ErrInsufficientBytes
	}

	return buf[next : next+int(length)], next + int(length), nil
}

// readString extracts a 16-bit length-prefixed UTF-8 string from buf at offset.
func readString(buf []byte, offset int) (string, int, error) {
	b, n, err := readBytes(buf, offset)
	if err != nil {
		return "", 0, err
	}

	if !validUTF8(b) { // [MQTT-1.5.3-1]
		return "", 0, ErrInvalidUTF8
	}

	return string(b), n, nil
}

// validUTF8 reports whether b is well-formed UTF-8 containing no encoding
// of the null character. [MQTT-1.5.3-1] [MQTT-1.5.3-2]
func validUTF8(b []byte) bool {
	return utf8.Valid(b) && bytes.IndexByte(b, 0x00) == -1
}

// writeUint16 returns val as a two-byte big-endian field.
func writeUint16(val uint16) []byte {
	return binary.BigEndian.AppendUint16(make([]byte, 0, 2), val)
}

// writeBytes appends a 16-bit length prefix and the field bytes. Most
// encoded fields are short, so a small initial capacity avoids growth
// on append in the common case.
func writeBytes(val []byte) []byte {
	buf := binary.BigEndian.AppendUint16(make([]byte, 0, 32), uint16(len(val)))
	return append(buf, val...)
}

// writeString appends a 16-bit length prefix and the string bytes.
func writeString(val string) []byte {
	buf := binary.BigEndian.AppendUint16(make([]byte, 0, 32), uint16(len(val)))
	return append(buf, val...)
}

// boolByte returns 1 for true and 0 for false.
func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// wrapMalformed annotates a low-level decode failure with the packet field
// that was being decoded.
func wrapMalformed(field error, err error) error {
	return fmt.Errorf("%w: %s", field, err)
}
