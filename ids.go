// SPDX-License-Identifier: MIT
// SPDX-FileCopyrightText: 2023 wiremq

package mqtt

import (
	"sort"
	"sync"

	"github.com/wiremq/client/packets"
)

// Inflight is a map of in-flight packets keyed on packet id. An entry exists
// from the moment an identified publish (or the pubrel that replaced it) is
// sent until its terminal acknowledgement arrives.
type Inflight struct {
	sync.RWMutex
	internal map[uint16]packets.Packet
}

// NewInflight returns a new instance of an Inflight packets map.
func NewInflight() *Inflight {
	return &Inflight{
		internal: map[uint16]packets.Packet{},
	}
}

// Set adds or replaces an in-flight packet by packet id. Returns true if
// the packet id was not already present.
func (i *Inflight) Set(m packets.Packet) bool {
	i.Lock()
	defer i.Unlock()

	_, ok := i.internal[m.PacketID]
	i.internal[m.PacketID] = m
	return !ok
}

// Get returns an in-flight packet by packet id.
func (i *Inflight) Get(id uint16) (packets.Packet, bool) {
	i.RLock()
	defer i.RUnlock()

	m, ok := i.internal[id]
	return m, ok
}

// Len returns the number of packets currently in-flight.
func (i *Inflight) Len() int {
	i.RLock()
	defer i.RUnlock()
	return len(i.internal)
}

// GetAll returns all in-flight packets, ordered by packet id.
func (i *Inflight) GetAll() []packets.Packet {
	i.RLock()
	defer i.RUnlock()

	m := make([]packets.Packet, 0, len(i.internal))
	for _, v := range i.internal {
		m = append(m, v)
	}

	sort.Slice(m, func(a, b int) bool {
		return m[a].PacketID < m[b].PacketID
	})

	return m
}

// Delete removes an in-flight packet from the map. Returns true if the
// packet existed.
func (i *Inflight) Delete(id uint16) bool {
	i.Lock()
	defer i.Unlock()

	_, ok := i.internal[id]
	delete(i.internal, id)

	return ok
}

// pendings maps packet ids to the receipts of callers suspended in
// SendReceive. At most one receipt exists per id; the inbound frame which
// terminates the exchange takes it atomically.
type pendings struct {
	sync.Mutex
	internal map[uint16]*receipt
}

func newPendings() *pendings {
	return &pendings{
		internal: map[uint16]*receipt{},
	}
}

// Set registers a receipt under a packet id, replacing any prior
// registration under the same id.
func (p *pendings) Set(id uint16, r *receipt) {
	p.Lock()
	p.internal[id] = r
	p.Unlock()
}

// Take atomically removes and returns the receipt for a packet id.
func (p *pendings) Take(id uint16) (*receipt, bool) {
	p.Lock()
	defer p.Unlock()

	r, ok := p.internal[id]
	delete(p.internal, id)
	return r, ok
}

// TakeAll atomically removes and returns every registered receipt.
func (p *pendings) TakeAll() []*receipt {
	p.Lock()
	defer p.Unlock()

	all := make([]*receipt, 0, len(p.internal))
	for _, r := range p.internal {
		all = append(all, r)
	}
	p.internal = map[uint16]*receipt{}
	return all
}

// Len returns the number of registered receipts.
func (p *pendings) Len() int {
	p.Lock()
	defer p.Unlock()
	return len(p.internal)
}

// dedup is the set of packet ids of inbound qos 2 publishes for which a
// pubrec has been sent but no pubrel received. It suppresses duplicate
// delivery when the server retransmits.
type dedup struct {
	sync.Mutex
	internal map[uint16]struct{}
}

func newDedup() *dedup {
	return &dedup{
		internal: map[uint16]struct{}{},
	}
}

// Set inserts a packet id into the set. Returns true if the id was not
// already present.
func (d *dedup) Set(id uint16) bool {
	d.Lock()
	defer d.Unlock()

	_, ok := d.internal[id]
	d.internal[id] = struct{}{}
	return !ok
}

// Delete removes a packet id from the set. Returns true if the id existed.
func (d *dedup) Delete(id uint16) bool {
	d.Lock()
	defer d.Unlock()

	_, ok := d.internal[id]
	delete(d.internal, id)
	return ok
}

// Contains reports whether a packet id is in the set.
func (d *dedup) Contains(id uint16) bool {
	d.Lock()
	defer d.Unlock()

	_, ok := d.internal[id]
	return ok
}
