// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

// Package mqtt implements the client side of the MQTT 3.1.1 protocol: an
// engine which frames control packets over a reliable byte stream,
// correlates acknowledgements by packet identifier, drives the qos 0/1/2
// delivery handshakes in both directions, keeps the connection alive with
// ping requests, and delivers received publishes to the caller in arrival
// order.
package mqtt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/wiremq/client/packets"
	"github.com/wiremq/client/system"
	"github.com/wiremq/client/transport"
)

const Version = "0.1.0" // the current client version.

// Message is an application publication delivered to the caller.
type Message struct {
	Topic   string // the topic the message was published to.
	Payload []byte // the application payload.
	Qos     byte   // the quality of service the message arrived with.
	Retain  bool   // whether the server stored the message as retained.
	Dup     bool   // whether the server marked the publish as a redelivery.
}

// Session is an established connection to an MQTT server. All methods are
// safe for concurrent use.
type Session struct {
	Inflight *Inflight    // in-flight outbound packets awaiting their terminal ack
	Info     *system.Info // live session counters

	opts      Options
	conn      *transport.Conn
	log       *slog.Logger
	frames    chan packets.Packet // the outbound frame queue
	messages  chan Message        // the delivered message sink
	pending   *pendings           // receipts of callers suspended in SendReceive
	incoming  *dedup              // inbound qos 2 ids between pubrec and pubrel
	keepalive *ticker

	connackCh    chan packets.Packet
	gotConnack   uint32 // exactly one connack is legal
	awaitingPing int32  // a pingreq has been sent with no pingresp yet
	packetID     uint32 // the current highest allocated packet id

	done    chan struct{}
	endOnce sync.Once
	errMu   sync.Mutex
	err     error
}

// Dial connects to an MQTT server address (host:port) over TCP and performs
// the connect handshake. The context bounds connection establishment only.
func Dial(ctx context.Context, address string, opts Options) (*Session, error) {
	conn, err := transport.Dial(ctx, address, nil)
	if err != nil {
		return nil, err
	}

	s, err := New(ctx, conn, opts)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// New performs the connect handshake over an established frame transport
// and returns a running session. The transport is owned by the session from
// this point and closed when the session stops. The context bounds the wait
// for the server's connack; a refused connection returns a
// *ConnectionError carrying the return code.
func New(ctx context.Context, conn *transport.Conn, opts Options) (*Session, error) {
	opts.ensureDefaults()

	s := &Session{
		Inflight:  NewInflight(),
		Info:      conn.Info(),
		opts:      opts,
		conn:      conn,
		log:       opts.Logger.With("client", opts.ClientID),
		frames:    make(chan packets.Packet, opts.Capacity),
		messages:  make(chan Message, opts.SinkCapacity),
		pending:   newPendings(),
		incoming:  newDedup(),
		keepalive: newTicker(time.Duration(opts.Keepalive) * time.Second),
		connackCh: make(chan packets.Packet, 1),
		done:      make(chan struct{}),
	}

	atomic.StoreInt64(&s.Info.Started, time.Now().Unix())

	go s.writer()
	go s.reader()
	go s.keepalive.Run(s.ping)

	err := s.enqueue(ctx, s.connectPacket())
	if err != nil {
		s.shutdown(err)
		return nil, err
	}

	select {
	case pk := <-s.connackCh:
		if pk.ReturnCode != packets.Accepted {
			err := &ConnectionError{Code: pk.ReturnCode}
			s.shutdown(err)
			return nil, err
		}

		s.log.Info("session established", "address", conn.RemoteAddr().String(), "session_present", pk.SessionPresent)
		return s, nil
	case <-ctx.Done():
		s.shutdown(ErrConnackTimeout)
		return nil, ctx.Err()
	case <-s.done:
		err := s.Err()
		if err == nil {
			err = ErrSessionClosed
		}
		return nil, err
	}
}

// connectPacket builds the connect packet from the session options.
func (s *Session) connectPacket() packets.Packet {
	pk := packets.Packet{
		FixedHeader:      packets.NewFixedHeader(packets.Connect),
		ClientIdentifier: s.opts.ClientID,
		CleanSession:     s.opts.CleanSession,
		Keepalive:        s.opts.Keepalive,
	}

	if s.opts.Will != nil {
		pk.WillFlag = true
		pk.WillTopic = s.opts.Will.Topic
		pk.WillPayload = s.opts.Will.Payload
		pk.WillQos = s.opts.Will.Qos
		pk.WillRetain = s.opts.Will.Retain
	}

	if s.opts.Username != nil {
		pk.UsernameFlag = true
		pk.Username = s.opts.Username
	}

	if s.opts.Password != nil {
		pk.PasswordFlag = true
		pk.Password = s.opts.Password
	}

	return pk
}

// Send enqueues a packet for transmission and returns once it has been
// accepted by the outbound queue. No acknowledgement is awaited; a
// caller-chosen packet identifier is the caller's responsibility.
func (s *Session) Send(ctx context.Context, pk packets.Packet) error {
	return s.enqueue(ctx, pk)
}

// SendReceive enqueues a packet and suspends until the inbound pipeline
// completes the exchange registered under id. Registering an id already in
// use replaces the prior registration, which would strand its caller;
// reusing an id before its exchange completes is a caller bug. The result
// carries the granted qos codes for a subscribe, and nothing otherwise.
// When the session ends first the error is ErrCancelled.
func (s *Session) SendReceive(ctx context.Context, pk packets.Packet, id uint16) (Result, error) {
	r := newReceipt()
	s.pending.Set(id, r)

	err := s.enqueue(ctx, pk)
	if err != nil {
		s.pending.Take(id)
		return Result{}, err
	}

	res, err := r.wait(ctx)
	if err != nil {
		// The caller gave up; drop the registration so the receipt does not
		// linger until teardown.
		s.pending.Take(id)
	}

	return res, err
}

// Messages returns the stream of received application messages, in server
// arrival order. The channel is closed when the session ends.
func (s *Session) Messages() <-chan Message {
	return s.messages
}

// NextPacketID returns the next packet id, looping back to 1 after the
// maximum id has been allocated.
func (s *Session) NextPacketID() uint16 {
	for {
		if id := uint16(atomic.AddUint32(&s.packetID, 1)); id != 0 {
			return id
		}
	}
}

// Done is closed when the session has ended, for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure which ended the session, or nil while it is
// running or after a clean stop.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Disconnect sends a disconnect packet, allows the outbound queue a moment
// to drain, then stops the session.
func (s *Session) Disconnect(ctx context.Context) error {
	err := s.enqueue(ctx, packets.Packet{FixedHeader: packets.NewFixedHeader(packets.Disconnect)})

	for err == nil && len(s.frames) > 0 {
		select {
		case <-ctx.Done():
			err = ctx.Err()
		case <-s.done:
			err = ErrSessionClosed
		case <-time.After(time.Millisecond):
		}
	}

	s.Stop()
	return err
}

// Stop ends the session: the keepalive ticker, the outbound pipeline and
// the inbound pipeline, in that order. The frame queue is not flushed.
// Outstanding SendReceive callers are completed with ErrCancelled.
// Idempotent.
func (s *Session) Stop() {
	s.shutdown(nil)
}

// enqueue places a packet on the outbound frame queue, blocking while the
// queue is full.
func (s *Session) enqueue(ctx context.Context, pk packets.Packet) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.frames <- pk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}
}

// shutdown tears the session down once: record the terminal error, signal
// both pipelines, cancel the ticker, close the transport, and release every
// suspended caller.
func (s *Session) shutdown(err error) {
	s.endOnce.Do(func() {
		if err != nil && !errors.Is(err, ErrSessionClosed) {
			s.errMu.Lock()
			s.err = err
			s.errMu.Unlock()
			s.log.Warn("session ended", "error", err)
		} else {
			s.log.Info("session stopped")
		}

		s.keepalive.Cancel()
		close(s.done)
		s.conn.Close()

		for _, r := range s.pending.TakeAll() {
			r.resolve(nil, ErrCancelled)
		}
	})
}

// ping is fired by the keepalive ticker after a full interval of outbound
// idleness. A previous ping still unanswered means the server is gone.
func (s *Session) ping() bool {
	if !atomic.CompareAndSwapInt32(&s.awaitingPing, 0, 1) {
		s.shutdown(ErrKeepaliveTimeout)
		return false
	}

	err := s.enqueue(context.Background(), packets.Packet{FixedHeader: packets.NewFixedHeader(packets.Pingreq)})
	return err == nil
}
