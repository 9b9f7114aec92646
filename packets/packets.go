// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

// Package packets provides a bit-exact codec for MQTT 3.1.1 control packets.
package packets

import (
	"bytes"
)

// All of the valid packet types and their packet identifier.
const (
	Reserved    byte = iota
	Connect          // 1
	Connack          // 2
	Publish          // 3
	Puback           // 4
	Pubrec           // 5
	Pubrel           // 6
	Pubcomp          // 7
	Subscribe        // 8
	Suback           // 9
	Unsubscribe      // 10
	Unsuback         // 11
	Pingreq          // 12
	Pingresp         // 13
	Disconnect       // 14
)

// Names is a map that provides human-readable names for the different
// MQTT packet types based on their ids.
var Names = map[byte]string{
	0:  "RESERVED",
	1:  "CONNECT",
	2:  "CONNACK",
	3:  "PUBLISH",
	4:  "PUBACK",
	5:  "PUBREC",
	6:  "PUBREL",
	7:  "PUBCOMP",
	8:  "SUBSCRIBE",
	9:  "SUBACK",
	10: "UNSUBSCRIBE",
	11: "UNSUBACK",
	12: "PINGREQ",
	13: "PINGRESP",
	14: "DISCONNECT",
}

// protocolName and protocolVersion identify MQTT 3.1.1 in the CONNECT
// variable header. [MQTT-3.1.2-1] [MQTT-3.1.2-2]
var protocolName = []byte{'M', 'Q', 'T', 'T'}

const protocolVersion byte = 4

// Packet is an MQTT packet. Instead of providing a packet interface and
// variant packet structs, this is a single concrete packet type covering all
// packet types, which simplifies handling at the dispatch sites.
type Packet struct {
	FixedHeader      FixedHeader
	Topics           []string // subscribe/unsubscribe topic filters
	Qoss             []byte   // subscribe requested qos per filter
	ReturnCodes      []byte   // suback granted qos per filter
	Payload          []byte
	Username         []byte
	Password         []byte
	WillPayload      []byte
	ClientIdentifier string
	TopicName        string
	WillTopic        string
	PacketID         uint16
	Keepalive        uint16
	ReturnCode       byte
	WillQos          byte
	CleanSession     bool
	WillFlag         bool
	WillRetain       bool
	UsernameFlag     bool
	PasswordFlag     bool
	SessionPresent   bool
}

// NewFixedHeader returns a fresh fixed header for a given packet type,
// pre-setting the qos bit for the types which require it. [MQTT-3.6.1-1]
func NewFixedHeader(packetType byte) FixedHeader {
	fh := FixedHeader{
		Type: packetType,
	}
	if packetType == Pubrel || packetType == Subscribe || packetType == Unsubscribe {
		fh.Qos = 1
	}

	return fh
}

// ConnectEncode encodes a Connect packet.
func (pk *Packet) ConnectEncode(buf *bytes.Buffer) error {
	proto := writeBytes(protocolName)
	flags := pk.connectFlags()
	keepalive := writeUint16(pk.Keepalive)
	clientID := writeString(pk.ClientIdentifier)

	var willTopic, willPayload, username, password []byte
	if pk.WillFlag {
		willTopic = writeString(pk.WillTopic)
		willPayload = writeBytes(pk.WillPayload)
	}

	if pk.UsernameFlag {
		username = writeBytes(pk.Username)
	}

	if pk.PasswordFlag {
		password = writeBytes(pk.Password)
	}

	pk.FixedHeader.Remaining = len(proto) + 1 + 1 + len(keepalive) + len(clientID) +
		len(willTopic) + len(willPayload) + len(username) + len(password)
	pk.FixedHeader.Encode(buf)

	buf.Write(proto)
	buf.WriteByte(protocolVersion)
	buf.WriteByte(flags)
	buf.Write(keepalive)
	buf.Write(clientID)
	buf.Write(willTopic)
	buf.Write(willPayload)
	buf.Write(username)
	buf.Write(password)

	return nil
}

// connectFlags packs the Connect flag bits into the flags byte.
func (pk *Packet) connectFlags() byte {
	return boolByte(pk.CleanSession)<<1 |
		boolByte(pk.WillFlag)<<2 |
		pk.WillQos<<3 |
		boolByte(pk.WillRetain)<<5 |
		boolByte(pk.PasswordFlag)<<6 |
		boolByte(pk.UsernameFlag)<<7
}

// ConnectDecode decodes a Connect packet.
func (pk *Packet) ConnectDecode(buf []byte) error {
	var offset int
	var err error

	name, offset, err := readBytes(buf, 0)
	if err != nil {
		return wrapMalformed(ErrMalformedProtocolName, err)
	}
	if !bytes.Equal(name, protocolName) {
		return ErrMalformedProtocolName
	}

	version, offset, err := readByte(buf, offset)
	if err != nil {
		return wrapMalformed(ErrMalformedProtocolVersion, err)
	}
	if version != protocolVersion {
		return ErrMalformedProtocolVersion
	}

	flags, offset, err := readByte(buf, offset)
	if err != nil {
		return wrapMalformed(ErrMalformedFlags, err)
	}
	if flags&0x01 > 0 { // reserved bit [MQTT-3.1.2-3]
		return ErrMalformedFlags
	}
	pk.CleanSession = 1&(flags>>1) > 0
	pk.WillFlag = 1&(flags>>2) > 0
	pk.WillQos = 3 & (flags >> 3)
	pk.WillRetain = 1&(flags>>5) > 0
	pk.PasswordFlag = 1&(flags>>6) > 0
	pk.UsernameFlag = 1&(flags>>7) > 0

	pk.Keepalive, offset, err = readUint16(buf, offset)
	if err != nil {
		return wrapMalformed(ErrMalformedKeepalive, err)
	}

	pk.ClientIdentifier, offset, err = readString(buf, offset)
	if err != nil {
		return wrapMalformed(ErrMalformedClientID, err)
	}

	if pk.WillFlag {
		pk.WillTopic, offset, err = readString(buf, offset)
		if err != nil {
			return wrapMalformed(ErrMalformedWillTopic, err)
		}

		pk.WillPayload, offset, err = readBytes(buf, offset)
		if err != nil {
			return wrapMalformed(ErrMalformedWillPayload, err)
		}
	}

	if pk.UsernameFlag {
		pk.Username, offset, err = readBytes(buf, offset)
		if err != nil {
			return wrapMalformed(ErrMalformedUsername, err)
		}
	}

	if pk.PasswordFlag {
		pk.Password, _, err = readBytes(buf, offset)
		if err != nil {
			return wrapMalformed(ErrMalformedPassword, err)
		}
	}

	return nil
}

// ConnackEncode encodes a Connack packet.
func (pk *Packet) ConnackEncode(buf *bytes.Buffer) error {
	pk.FixedHeader.Remaining = 2
	pk.FixedHeader.Encode(buf)
	buf.WriteByte(boolByte(pk.SessionPresent))
	buf.WriteByte(pk.ReturnCode)
	return nil
}

// ConnackDecode decodes a Connack packet.
func (pk *Packet) ConnackDecode(buf []byte) error {
	ack, offset, err := readByte(buf, 0)
	if err != nil {
		return wrapMalformed(ErrMalformedSessionPresent, err)
	}
	if ack&0xfe > 0 { // [MQTT-3.2.2-1]
		return ErrMalformedSessionPresent
	}
	pk.SessionPresent = ack&0x01 > 0

	pk.ReturnCode, _, err = readByte(buf, offset)
	if err != nil {
		return wrapMalformed(ErrMalformedReturnCode, err)
	}

	return nil
}

// PublishEncode encodes a Publish packet.
func (pk *Packet) PublishEncode(buf *bytes.Buffer) error {
	topicName := writeString(pk.TopicName)
	var packetID []byte

	// [MQTT-2.3.1-5] A PUBLISH packet must not contain a packet identifier
	// if its qos value is set to 0.
	if pk.FixedHeader.Qos > 0 {
		// [MQTT-2.3.1-1] Identified packets must contain a non-zero packet identifier.
		if pk.PacketID == 0 {
			return ErrMissingPacketID
		}

		packetID = writeUint16(pk.PacketID)
	}

	pk.FixedHeader.Remaining = len(topicName) + len(packetID) + len(pk.Payload)
	pk.FixedHeader.Encode(buf)
	buf.Write(topicName)
	buf.Write(packetID)
	buf.Write(pk.Payload)

	return nil
}

// PublishDecode extracts the data values from a Publish packet.
func (pk *Packet) PublishDecode(buf []byte) error {
	var offset int
	var err error

	pk.TopicName, offset, err = readString(buf, 0)
	if err != nil {
		return wrapMalformed(ErrMalformedTopic, err)
	}

	if pk.FixedHeader.Qos > 0 {
		pk.PacketID, offset, err = readUint16(buf, offset)
		if err != nil {
			return wrapMalformed(ErrMalformedPacketID, err)
		}
	}

	pk.Payload = buf[offset:]

	return nil
}

// PublishValidate validates a Publish packet against the identifier rules
// of the specification.
func (pk *Packet) PublishValidate() error {
	// [MQTT-2.3.1-1]
	if pk.FixedHeader.Qos > 0 && pk.PacketID == 0 {
		return ErrMissingPacketID
	}

	// [MQTT-2.3.1-5]
	if pk.FixedHeader.Qos == 0 && pk.PacketID > 0 {
		return ErrSurplusPacketID
	}

	return nil
}

// PubackEncode encodes a Puback packet.
func (pk *Packet) PubackEncode(buf *bytes.Buffer) error {
	return pk.encodeID(buf)
}

// PubackDecode decodes a Puback packet.
func (pk *Packet) PubackDecode(buf []byte) error {
	return pk.decodeID(buf)
}

// PubrecEncode encodes a Pubrec packet.
func (pk *Packet) PubrecEncode(buf *bytes.Buffer) error {
	return pk.encodeID(buf)
}

// PubrecDecode decodes a Pubrec packet.
func (pk *Packet) PubrecDecode(buf []byte) error {
	return pk.decodeID(buf)
}

// PubrelEncode encodes a Pubrel packet.
func (pk *Packet) PubrelEncode(buf *bytes.Buffer) error {
	return pk.encodeID(buf)
}

// PubrelDecode decodes a Pubrel packet.
func (pk *Packet) PubrelDecode(buf []byte) error {
	return pk.decodeID(buf)
}

// PubcompEncode encodes a Pubcomp packet.
func (pk *Packet) PubcompEncode(buf *bytes.Buffer) error {
	return pk.encodeID(buf)
}

// PubcompDecode decodes a Pubcomp packet.
func (pk *Packet) PubcompDecode(buf []byte) error {
	return pk.decodeID(buf)
}

// encodeID encodes the packets whose entire variable header is a packet
// identifier (puback, pubrec, pubrel, pubcomp, unsuback).
func (pk *Packet) encodeID(buf *bytes.Buffer) error {
	pk.FixedHeader.Remaining = 2
	pk.FixedHeader.Encode(buf)
	buf.Write(writeUint16(pk.PacketID))
	return nil
}

// decodeID decodes the packets whose entire variable header is a packet
// identifier.
func (pk *Packet) decodeID(buf []byte) error {
	var err error
	pk.PacketID, _, err = readUint16(buf, 0)
	if err != nil {
		return wrapMalformed(ErrMalformedPacketID, err)
	}
	return nil
}

// SubscribeEncode encodes a Subscribe packet.
func (pk *Packet) SubscribeEncode(buf *bytes.Buffer) error {
	// [MQTT-2.3.1-1]
	if pk.PacketID == 0 {
		return ErrMissingPacketID
	}

	packetID := writeUint16(pk.PacketID)

	var topicsLen int
	for _, topic := range pk.Topics {
		topicsLen += len(writeString(topic)) + 1
	}

	pk.FixedHeader.Remaining = len(packetID) + topicsLen
	pk.FixedHeader.Encode(buf)
	buf.Write(packetID)

	for i, topic := range pk.Topics {
		buf.Write(writeString(topic))
		buf.WriteByte(pk.Qoss[i])
	}

	return nil
}

// SubscribeDecode decodes a Subscribe packet.
func (pk *Packet) SubscribeDecode(buf []byte) error {
	var offset int
	var err error

	pk.PacketID, offset, err = readUint16(buf, 0)
	if err != nil {
		return wrapMalformed(ErrMalformedPacketID, err)
	}

	for offset < len(buf) {
		var topic string
		topic, offset, err = readString(buf, offset)
		if err != nil {
			return wrapMalformed(ErrMalformedTopic, err)
		}
		pk.Topics = append(pk.Topics, topic)

		var qos byte
		qos, offset, err = readByte(buf, offset)
		if err != nil {
			return wrapMalformed(ErrMalformedQos, err)
		}

		if qos > 2 {
			return ErrMalformedQos
		}

		pk.Qoss = append(pk.Qoss, qos)
	}

	return nil
}

// SubackEncode encodes a Suback packet.
func (pk *Packet) SubackEncode(buf *bytes.Buffer) error {
	packetID := writeUint16(pk.PacketID)
	pk.FixedHeader.Remaining = len(packetID) + len(pk.ReturnCodes)
	pk.FixedHeader.Encode(buf)
	buf.Write(packetID)
	buf.Write(pk.ReturnCodes)
	return nil
}

// SubackDecode decodes a Suback packet.
func (pk *Packet) SubackDecode(buf []byte) error {
	var offset int
	var err error

	pk.PacketID, offset, err = readUint16(buf, 0)
	if err != nil {
		return wrapMalformed(ErrMalformedPacketID, err)
	}

	pk.ReturnCodes = buf[offset:]

	return nil
}

// UnsubscribeEncode encodes an Unsubscribe packet.
func (pk *Packet) UnsubscribeEncode(buf *bytes.Buffer) error {
	// [MQTT-2.3.1-1]
	if pk.PacketID == 0 {
		return ErrMissingPacketID
	}

	packetID := writeUint16(pk.PacketID)

	var topicsLen int
	for _, topic := range pk.Topics {
		topicsLen += len(writeString(topic))
	}

	pk.FixedHeader.Remaining = len(packetID) + topicsLen
	pk.FixedHeader.Encode(buf)
	buf.Write(packetID)

	for _, topic := range pk.Topics {
		buf.Write(writeString(topic))
	}

	return nil
}

// UnsubscribeDecode decodes an Unsubscribe packet.
func (pk *Packet) UnsubscribeDecode(buf []byte) error {
	var offset int
	var err error

	pk.PacketID, offset, err = readUint16(buf, 0)
	if err != nil {
		return wrapMalformed(ErrMalformedPacketID, err)
	}

	for offset < len(buf) {
		var topic string
		topic, offset, err = readString(buf, offset)
		if err != nil {
			return wrapMalformed(ErrMalformedTopic, err)
		}
		pk.Topics = append(pk.Topics, topic)
	}

	return nil
}

// UnsubackEncode encodes an Unsuback packet.
func (pk *Packet) UnsubackEncode(buf *bytes.Buffer) error {
	return pk.encodeID(buf)
}

// UnsubackDecode decodes an Unsuback packet.
func (pk *Packet) UnsubackDecode(buf []byte) error {
	return pk.decodeID(buf)
}

// PingreqEncode encodes a Pingreq packet.
func (pk *Packet) PingreqEncode(buf *bytes.Buffer) error {
	pk.FixedHeader.Encode(buf)
	return nil
}

// PingrespEncode encodes a Pingresp packet.
func (pk *Packet) PingrespEncode(buf *bytes.Buffer) error {
	pk.FixedHeader.Encode(buf)
	return nil
}

// DisconnectEncode encodes a Disconnect packet.
func (pk *Packet) DisconnectEncode(buf *bytes.Buffer) error {
	pk.FixedHeader.Encode(buf)
	return nil
}
