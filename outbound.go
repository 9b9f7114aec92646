// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package mqtt

import (
	"sync/atomic"

	"github.com/wiremq/client/packets"
)

// writer is the outbound pipeline. It drains the frame queue in enqueue
// order, records identified publishes as in-flight, hands each frame to the
// transport, and resets the keepalive ticker on every send. A write failure
// ends the session.
func (s *Session) writer() {
	for {
		select {
		case <-s.done:
			return
		case pk := <-s.frames:
			// An identified publish stays in the in-flight table until its
			// terminal ack arrives. Re-sends replace the entry, so the table
			// always reflects the latest sent form. Pubrels are recorded by
			// the inbound pipeline at the point they are generated, not here.
			if pk.FixedHeader.Type == packets.Publish && pk.PacketID > 0 {
				if s.Inflight.Set(pk) {
					atomic.AddInt64(&s.Info.Inflight, 1)
				}
			}

			err := s.conn.WritePacket(pk)
			if err != nil {
				s.log.Warn("outbound write failed", "packet", packets.Names[pk.FixedHeader.Type], "error", err)
				s.shutdown(err)
				return
			}

			if pk.FixedHeader.Type == packets.Pingreq {
				atomic.AddInt64(&s.Info.PingsSent, 1)
			}

			s.keepalive.Reset()
		}
	}
}
