// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package packets

import (
	"bytes"
	"testing"

	"github.com/jinzhu/copier"
	"github.com/stretchr/testify/require"
)

// wireCase pairs a packet with its exact wire representation.
type wireCase struct {
	desc     string
	packet   Packet
	rawBytes []byte
}

var wireCases = map[byte][]wireCase{
	Connect: {
		{
			desc: "clean session with keepalive",
			packet: Packet{
				FixedHeader:      FixedHeader{Type: Connect, Remaining: 17},
				ClientIdentifier: "wmq-1",
				CleanSession:     true,
				Keepalive:        30,
			},
			rawBytes: []byte{
				Connect << 4, 17, // fixed header
				0, 4, 'M', 'Q', 'T', 'T', // protocol name
				4,     // protocol version
				2,     // flags (clean session)
				0, 30, // keepalive
				0, 5, 'w', 'm', 'q', '-', '1', // client id
			},
		},
		{
			desc: "will, username and password",
			packet: Packet{
				FixedHeader:      FixedHeader{Type: Connect, Remaining: 33},
				ClientIdentifier: "c1",
				CleanSession:     true,
				Keepalive:        10,
				WillFlag:         true,
				WillTopic:        "lwt",
				WillPayload:      []byte{'b', 'y', 'e'},
				WillQos:          1,
				WillRetain:       true,
				UsernameFlag:     true,
				Username:         []byte("ana"),
				PasswordFlag:     true,
				Password:         []byte{'p', 'w'},
			},
			rawBytes: []byte{
				Connect << 4, 33,
				0, 4, 'M', 'Q', 'T', 'T',
				4,
				0xee, // username, password, will retain, will qos 1, will, clean
				0, 10,
				0, 2, 'c', '1',
				0, 3, 'l', 'w', 't',
				0, 3, 'b', 'y', 'e',
				0, 3, 'a', 'n', 'a',
				0, 2, 'p', 'w',
			},
		},
	},
	Connack: {
		{
			desc: "accepted with session present",
			packet: Packet{
				FixedHeader:    FixedHeader{Type: Connack, Remaining: 2},
				SessionPresent: true,
				ReturnCode:     Accepted,
			},
			rawBytes: []byte{Connack << 4, 2, 1, 0},
		},
		{
			desc: "bad username or password",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Connack, Remaining: 2},
				ReturnCode:  RefusedBadUsernameOrPassword,
			},
			rawBytes: []byte{Connack << 4, 2, 0, 4},
		},
	},
	Publish: {
		{
			desc: "qos 0 no packet id",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Publish, Remaining: 10},
				TopicName:   "a/b/c",
				Payload:     []byte("hey"),
			},
			rawBytes: []byte{
				Publish << 4, 10,
				0, 5, 'a', '/', 'b', '/', 'c',
				'h', 'e', 'y',
			},
		},
		{
			desc: "qos 1 with packet id",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Publish, Qos: 1, Remaining: 9},
				TopicName:   "a/b",
				PacketID:    7,
				Payload:     []byte{0x01, 0x02},
			},
			rawBytes: []byte{
				Publish<<4 | 1<<1, 9,
				0, 3, 'a', '/', 'b',
				0, 7,
				0x01, 0x02,
			},
		},
		{
			desc: "qos 2 retained duplicate",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Publish, Qos: 2, Dup: true, Retain: true, Remaining: 8},
				TopicName:   "t",
				PacketID:    42,
				Payload:     []byte{0xAA, 0xBB, 0xCC},
			},
			rawBytes: []byte{
				Publish<<4 | 1<<3 | 2<<1 | 1, 8,
				0, 1, 't',
				0, 42,
				0xAA, 0xBB, 0xCC,
			},
		},
	},
	Puback: {
		{
			desc: "puback",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Puback, Remaining: 2},
				PacketID:    11,
			},
			rawBytes: []byte{Puback << 4, 2, 0, 11},
		},
	},
	Pubrec: {
		{
			desc: "pubrec",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Pubrec, Remaining: 2},
				PacketID:    12,
			},
			rawBytes: []byte{Pubrec << 4, 2, 0, 12},
		},
	},
	Pubrel: {
		{
			desc: "pubrel carries qos 1",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Pubrel, Qos: 1, Remaining: 2},
				PacketID:    12,
			},
			rawBytes: []byte{Pubrel<<4 | 1<<1, 2, 0, 12},
		},
	},
	Pubcomp: {
		{
			desc: "pubcomp",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Pubcomp, Remaining: 2},
				PacketID:    12,
			},
			rawBytes: []byte{Pubcomp << 4, 2, 0, 12},
		},
	},
	Subscribe: {
		{
			desc: "two filters",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Subscribe, Qos: 1, Remaining: 10},
				PacketID:    3,
				Topics:      []string{"a", "b"},
				Qoss:        []byte{0, 2},
			},
			rawBytes: []byte{
				Subscribe<<4 | 1<<1, 10,
				0, 3,
				0, 1, 'a', 0,
				0, 1, 'b', 2,
			},
		},
	},
	Suback: {
		{
			desc: "granted qos per filter",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Suback, Remaining: 4},
				PacketID:    3,
				ReturnCodes: []byte{0, 2},
			},
			rawBytes: []byte{Suback << 4, 4, 0, 3, 0, 2},
		},
	},
	Unsubscribe: {
		{
			desc: "two filters",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Unsubscribe, Qos: 1, Remaining: 8},
				PacketID:    5,
				Topics:      []string{"a", "b"},
			},
			rawBytes: []byte{
				Unsubscribe<<4 | 1<<1, 8,
				0, 5,
				0, 1, 'a',
				0, 1, 'b',
			},
		},
	},
	Unsuback: {
		{
			desc: "unsuback",
			packet: Packet{
				FixedHeader: FixedHeader{Type: Unsuback, Remaining: 2},
				PacketID:    5,
			},
			rawBytes: []byte{Unsuback << 4, 2, 0, 5},
		},
	},
	Pingreq: {
		{
			desc:     "pingreq",
			packet:   Packet{FixedHeader: FixedHeader{Type: Pingreq}},
			rawBytes: []byte{Pingreq << 4, 0},
		},
	},
	Pingresp: {
		{
			desc:     "pingresp",
			packet:   Packet{FixedHeader: FixedHeader{Type: Pingresp}},
			rawBytes: []byte{Pingresp << 4, 0},
		},
	},
	Disconnect: {
		{
			desc:     "disconnect",
			packet:   Packet{FixedHeader: FixedHeader{Type: Disconnect}},
			rawBytes: []byte{Disconnect << 4, 0},
		},
	},
}

// encodePacket dispatches to the encoder for the packet type.
func encodePacket(t *testing.T, pk *Packet, buf *bytes.Buffer) error {
	t.Helper()
	switch pk.FixedHeader.Type {
	case Connect:
		return pk.ConnectEncode(buf)
	case Connack:
		return pk.ConnackEncode(buf)
	case Publish:
		return pk.PublishEncode(buf)
	case Puback:
		return pk.PubackEncode(buf)
	case Pubrec:
		return pk.PubrecEncode(buf)
	case Pubrel:
		return pk.PubrelEncode(buf)
	case Pubcomp:
		return pk.PubcompEncode(buf)
	case Subscribe:
		return pk.SubscribeEncode(buf)
	case Suback:
		return pk.SubackEncode(buf)
	case Unsubscribe:
		return pk.UnsubscribeEncode(buf)
	case Unsuback:
		return pk.UnsubackEncode(buf)
	case Pingreq:
		return pk.PingreqEncode(buf)
	case Pingresp:
		return pk.PingrespEncode(buf)
	case Disconnect:
		return pk.DisconnectEncode(buf)
	}
	t.Fatalf("no encoder for type %d", pk.FixedHeader.Type)
	return nil
}

// decodePacket dispatches to the decoder for the packet type. The fixed
// header is assumed to have been read already, as the transport does.
func decodePacket(t *testing.T, pk *Packet, buf []byte) error {
	t.Helper()
	switch pk.FixedHeader.Type {
	case Connect:
		return pk.ConnectDecode(buf)
	case Connack:
		return pk.ConnackDecode(buf)
	case Publish:
		return pk.PublishDecode(buf)
	case Puback:
		return pk.PubackDecode(buf)
	case Pubrec:
		return pk.PubrecDecode(buf)
	case Pubrel:
		return pk.PubrelDecode(buf)
	case Pubcomp:
		return pk.PubcompDecode(buf)
	case Subscribe:
		return pk.SubscribeDecode(buf)
	case Suback:
		return pk.SubackDecode(buf)
	case Unsubscribe:
		return pk.UnsubscribeDecode(buf)
	case Unsuback:
		return pk.UnsubackDecode(buf)
	case Pingreq, Pingresp, Disconnect:
		return nil
	}
	t.Fatalf("no decoder for type %d", pk.FixedHeader.Type)
	return nil
}

func TestEncode(t *testing.T) {
	for packetType, cases := range wireCases {
		for i, wanted := range cases {
			pk := new(Packet)
			require.NoError(t, copier.Copy(pk, &wanted.packet), "[i:%d] %s", i, wanted.desc)

			buf := new(bytes.Buffer)
			err := encodePacket(t, pk, buf)
			require.NoError(t, err, "[i:%d] %s", i, wanted.desc)
			require.Equal(t, wanted.rawBytes, buf.Bytes(), "[i:%d] %s", i, wanted.desc)
			require.Equal(t, packetType, pk.FixedHeader.Type, "[i:%d] %s", i, wanted.desc)
		}
	}
}

func TestDecode(t *testing.T) {
	for _, cases := range wireCases {
		for i, wanted := range cases {
			fh := new(FixedHeader)
			err := fh.Decode(wanted.rawBytes[0])
			require.NoError(t, err, "[i:%d] %s", i, wanted.desc)
			fh.Remaining = int(wanted.rawBytes[1])

			pk := &Packet{FixedHeader: *fh}
			err = decodePacket(t, pk, wanted.rawBytes[2:])
			require.NoError(t, err, "[i:%d] %s", i, wanted.desc)
			require.Equal(t, wanted.packet, *pk, "[i:%d] %s", i, wanted.desc)
		}
	}
}

func TestConnectDecodeBadProtocol(t *testing.T) {
	pk := new(Packet)
	err := pk.ConnectDecode([]byte{0, 4, 'M', 'Q', 'X', 'X', 4, 2, 0, 30, 0, 1, 'c'})
	require.ErrorIs(t, err, ErrMalformedProtocolName)

	pk = new(Packet)
	err = pk.ConnectDecode([]byte{0, 4, 'M', 'Q', 'T', 'T', 3, 2, 0, 30, 0, 1, 'c'})
	require.ErrorIs(t, err, ErrMalformedProtocolVersion)

	pk = new(Packet)
	err = pk.ConnectDecode([]byte{0, 4, 'M', 'Q', 'T', 'T', 4, 3, 0, 30, 0, 1, 'c'})
	require.ErrorIs(t, err, ErrMalformedFlags)
}

func TestConnackDecodeMalformed(t *testing.T) {
	pk := new(Packet)
	require.ErrorIs(t, pk.ConnackDecode([]byte{}), ErrMalformedSessionPresent)

	pk = new(Packet)
	require.ErrorIs(t, pk.ConnackDecode([]byte{2, 0}), ErrMalformedSessionPresent)

	pk = new(Packet)
	require.ErrorIs(t, pk.ConnackDecode([]byte{0}), ErrMalformedReturnCode)
}

func TestPublishEncodeNoPacketID(t *testing.T) {
	pk := &Packet{
		FixedHeader: FixedHeader{Type: Publish, Qos: 1},
		TopicName:   "a/b",
	}
	require.ErrorIs(t, pk.PublishEncode(new(bytes.Buffer)), ErrMissingPacketID)
}

func TestPublishDecodeMalformed(t *testing.T) {
	pk := &Packet{FixedHeader: FixedHeader{Type: Publish}}
	require.ErrorIs(t, pk.PublishDecode([]byte{0, 9, 'a'}), ErrMalformedTopic)

	pk = &Packet{FixedHeader: FixedHeader{Type: Publish, Qos: 1}}
	require.ErrorIs(t, pk.PublishDecode([]byte{0, 1, 'a', 0}), ErrMalformedPacketID)
}

func TestPublishValidate(t *testing.T) {
	pk := &Packet{FixedHeader: FixedHeader{Type: Publish, Qos: 1}, TopicName: "t"}
	require.ErrorIs(t, pk.PublishValidate(), ErrMissingPacketID)

	pk = &Packet{FixedHeader: FixedHeader{Type: Publish}, TopicName: "t", PacketID: 2}
	require.ErrorIs(t, pk.PublishValidate(), ErrSurplusPacketID)

	pk = &Packet{FixedHeader: FixedHeader{Type: Publish, Qos: 2}, TopicName: "t", PacketID: 2}
	require.NoError(t, pk.PublishValidate())
}

func TestSubscribeEncodeNoPacketID(t *testing.T) {
	pk := &Packet{FixedHeader: FixedHeader{Type: Subscribe, Qos: 1}, Topics: []string{"a"}, Qoss: []byte{0}}
	require.ErrorIs(t, pk.SubscribeEncode(new(bytes.Buffer)), ErrMissingPacketID)
}

func TestSubscribeDecodeBadQos(t *testing.T) {
	pk := new(Packet)
	err := pk.SubscribeDecode([]byte{0, 3, 0, 1, 'a', 3})
	require.ErrorIs(t, err, ErrMalformedQos)
}

func TestUnsubscribeEncodeNoPacketID(t *testing.T) {
	pk := &Packet{FixedHeader: FixedHeader{Type: Unsubscribe, Qos: 1}, Topics: []string{"a"}}
	require.ErrorIs(t, pk.UnsubscribeEncode(new(bytes.Buffer)), ErrMissingPacketID)
}

func TestNewFixedHeader(t *testing.T) {
	require.Equal(t, FixedHeader{Type: Pubrel, Qos: 1}, NewFixedHeader(Pubrel))
	require.Equal(t, FixedHeader{Type: Subscribe, Qos: 1}, NewFixedHeader(Subscribe))
	require.Equal(t, FixedHeader{Type: Unsubscribe, Qos: 1}, NewFixedHeader(Unsubscribe))
	require.Equal(t, FixedHeader{Type: Puback}, NewFixedHeader(Puback))
}

func TestConnackReason(t *testing.T) {
	require.Equal(t, "connection accepted", ConnackReason(Accepted))
	require.Equal(t, "connection refused: bad user name or password", ConnackReason(RefusedBadUsernameOrPassword))
	require.Equal(t, "connection refused: unknown return code", ConnackReason(0x7f))
}
