// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package mqtt

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/wiremq/client/packets"
)

// reader is the inbound pipeline. It consumes decoded frames from the
// transport and dispatches each one; all state mutations for a frame happen
// before the next frame is read. The message sink is closed when the
// pipeline ends, terminating Messages.
func (s *Session) reader() {
	defer close(s.messages)

	for {
		pk, err := s.conn.ReadPacket()
		if err != nil {
			s.shutdown(err)
			return
		}

		err = s.processPacket(pk)
		if err != nil {
			s.log.Warn("inbound packet rejected", "packet", packets.Names[pk.FixedHeader.Type], "error", err)
			s.shutdown(err)
			return
		}
	}
}

// processPacket dispatches one inbound frame by packet type.
func (s *Session) processPacket(pk packets.Packet) error {
	switch pk.FixedHeader.Type {
	case packets.Publish:
		return s.processPublish(pk)
	case packets.Puback:
		return s.processPuback(pk)
	case packets.Pubrec:
		return s.processPubrec(pk)
	case packets.Pubrel:
		return s.processPubrel(pk)
	case packets.Pubcomp:
		return s.processPubcomp(pk)
	case packets.Suback:
		return s.processSuback(pk)
	case packets.Unsuback:
		return s.processUnsuback(pk)
	case packets.Pingresp:
		return s.processPingresp(pk)
	case packets.Connack:
		return s.processConnack(pk)
	default:
		// The remaining types (connect, subscribe, unsubscribe, pingreq,
		// disconnect) are never legal from the server in 3.1.1.
		return fmt.Errorf("%w: unexpected %s from server", ErrProtocolViolation, packets.Names[pk.FixedHeader.Type])
	}
}

// processPublish handles an inbound application message for each qos level.
func (s *Session) processPublish(pk packets.Packet) error {
	switch {
	case pk.FixedHeader.Qos == 0 && pk.PacketID == 0:
		return s.deliver(pk)

	case pk.FixedHeader.Qos == 1 && pk.PacketID > 0:
		err := s.deliver(pk)
		if err != nil {
			return err
		}

		return s.enqueue(context.Background(), packets.Packet{
			FixedHeader: packets.NewFixedHeader(packets.Puback),
			PacketID:    pk.PacketID,
		})

	case pk.FixedHeader.Qos == 2 && pk.PacketID > 0:
		// First receipt is delivered and remembered; anything already in the
		// set is a retransmit awaiting our pubrec, and must not deliver
		// twice. [MQTT-4.3.3-2]
		if s.incoming.Set(pk.PacketID) {
			err := s.deliver(pk)
			if err != nil {
				return err
			}
		}

		return s.enqueue(context.Background(), packets.Packet{
			FixedHeader: packets.NewFixedHeader(packets.Pubrec),
			PacketID:    pk.PacketID,
		})

	default:
		return fmt.Errorf("%w: publish with qos %d and packet id %d", ErrProtocolViolation, pk.FixedHeader.Qos, pk.PacketID)
	}
}

// deliver places a message on the sink in arrival order, blocking while the
// sink is full.
func (s *Session) deliver(pk packets.Packet) error {
	msg := Message{
		Topic:   pk.TopicName,
		Payload: pk.Payload,
		Qos:     pk.FixedHeader.Qos,
		Retain:  pk.FixedHeader.Retain,
		Dup:     pk.FixedHeader.Dup,
	}

	select {
	case s.messages <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// processPuback finalizes an outbound qos 1 publish.
func (s *Session) processPuback(pk packets.Packet) error {
	if s.Inflight.Delete(pk.PacketID) {
		atomic.AddInt64(&s.Info.Inflight, -1)
	}

	if r, ok := s.pending.Take(pk.PacketID); ok {
		r.resolve(nil, nil)
	}

	return nil
}

// processPubrec advances an outbound qos 2 publish to its release phase:
// the in-flight entry becomes the pubrel (qos 1 header, as the
// specification requires) and the pubrel goes out. The caller's receipt
// stays pending until the pubcomp.
func (s *Session) processPubrec(pk packets.Packet) error {
	rel := packets.Packet{
		FixedHeader: packets.NewFixedHeader(packets.Pubrel),
		PacketID:    pk.PacketID,
	}

	s.Inflight.Set(rel)

	return s.enqueue(context.Background(), rel)
}

// processPubrel completes the inbound half of a qos 2 exchange: the dedup
// entry is dropped and a pubcomp confirms release.
func (s *Session) processPubrel(pk packets.Packet) error {
	err := s.enqueue(context.Background(), packets.Packet{
		FixedHeader: packets.NewFixedHeader(packets.Pubcomp),
		PacketID:    pk.PacketID,
	})
	if err != nil {
		return err
	}

	s.incoming.Delete(pk.PacketID)

	return nil
}

// processPubcomp finalizes an outbound qos 2 publish.
func (s *Session) processPubcomp(pk packets.Packet) error {
	if s.Inflight.Delete(pk.PacketID) {
		atomic.AddInt64(&s.Info.Inflight, -1)
	}

	if r, ok := s.pending.Take(pk.PacketID); ok {
		r.resolve(nil, nil)
	}

	return nil
}

// processSuback completes a subscribe exchange with the granted qos codes.
func (s *Session) processSuback(pk packets.Packet) error {
	if r, ok := s.pending.Take(pk.PacketID); ok {
		r.resolve(pk.ReturnCodes, nil)
	}

	return nil
}

// processUnsuback completes an unsubscribe exchange.
func (s *Session) processUnsuback(pk packets.Packet) error {
	if r, ok := s.pending.Take(pk.PacketID); ok {
		r.resolve(nil, nil)
	}

	return nil
}

// processPingresp records that the server is alive, clearing the
// outstanding ping request.
func (s *Session) processPingresp(pk packets.Packet) error {
	atomic.StoreInt32(&s.awaitingPing, 0)
	atomic.AddInt64(&s.Info.PingsReceived, 1)

	return nil
}

// processConnack satisfies the construction gate. A second connack is
// illegal.
func (s *Session) processConnack(pk packets.Packet) error {
	if !atomic.CompareAndSwapUint32(&s.gotConnack, 0, 1) {
		return fmt.Errorf("%w: duplicate connack", ErrProtocolViolation)
	}

	s.connackCh <- pk

	return nil
}
