package events

// backlog keeps the most recent events in publish order. It is not safe for
// concurrent use; Hub guards it.
type backlog struct {
	buf  []Event
	head int // index of the oldest event
	n    int
}

func newBacklog(size int) *backlog {
	return &backlog{buf: make([]Event, size)}
}

func (b *backlog) add(ev Event) {
	if len(b.buf) == 0 {
		return
	}
	if b.n < len(b.buf) {
		b.buf[(b.head+b.n)%len(b.buf)] = ev
		b.n++
		return
	}
	b.buf[b.head] = ev
	b.head = (b.head + 1) % len(b.buf)
}

func (b *backlog) at(i int) Event {
	return b.buf[(b.head+i)%len(b.buf)]
}

// after returns retained events with ID > lastID, oldest first. lastID 0
// asks for everything retained. complete is false when events newer than
// lastID were already evicted, or when lastID is ahead of newest because the
// caller followed an earlier process; everything retained is returned then.
func (b *backlog) after(lastID, newest int64) (evs []Event, complete bool) {
	complete = true
	switch {
	case lastID > newest:
		lastID, complete = 0, false
	case lastID > 0 && b.n > 0:
		complete = b.at(0).ID <= lastID+1
	}
	for i := 0; i < b.n; i++ {
		if ev := b.at(i); ev.ID > lastID {
			evs = append(evs, ev)
		}
	}
	return evs, complete
}
