package costs

// requestRing is a fixed-capacity ring of request records with an id index so
// completions do not scan the ring.
type requestRing struct {
	slots []RequestRecord
	next  uint64
	count int
	index map[string]uint64
}

func newRequestRing(capacity int) *requestRing {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &requestRing{
		slots: make([]RequestRecord, capacity),
		index: make(map[string]uint64),
	}
}

func (r *requestRing) capacity() int { return len(r.slots) }

// push appends a record, evicting the oldest one when full.
func (r *requestRing) push(rec RequestRecord) {
	slot := int(r.next % uint64(len(r.slots)))
	if r.count == len(r.slots) {
		old := r.slots[slot]
		if seq, ok := r.index[old.RequestID]; ok && seq == r.next-uint64(len(r.slots)) {
			delete(r.index, old.RequestID)
		}
	} else {
		r.count++
	}

	r.slots[slot] = rec
	r.index[rec.RequestID] = r.next
	r.next++
}

// find returns a pointer to the newest record with the id.
func (r *requestRing) find(id string) *RequestRecord {
	seq, ok := r.index[id]
	if !ok || seq < r.next-uint64(r.count) {
		return nil
	}
	return &r.slots[int(seq%uint64(len(r.slots)))]
}

// records returns a copy ordered oldest first.
func (r *requestRing) records() []RequestRecord {
	out := make([]RequestRecord, 0, r.count)
	for seq := r.next - uint64(r.count); seq < r.next; seq++ {
		out = append(out, r.slots[int(seq%uint64(len(r.slots)))].clone())
	}
	return out
}

func (r *requestRing) len() int { return r.count }
