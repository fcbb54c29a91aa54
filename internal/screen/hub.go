package screen

// View is the type-erased surface of a screen, implemented by Controller and
// Static.
type View interface {
	Snapshot() Snapshot
	Load() <-chan struct{}
	Subscribe() (<-chan Snapshot, func())
	Collection() string
	Close()
}

const watchBuffer = 4

// hub fans snapshots out to subscribers. Callers hold the owner's lock.
type hub struct {
	watchers map[int]chan Snapshot
	next     int
}

func (h *hub) add(current Snapshot) (int, chan Snapshot) {
	if h.watchers == nil {
		h.watchers = make(map[int]chan Snapshot)
	}
	id := h.next
	h.next++
	ch := make(chan Snapshot, watchBuffer)
	ch <- current
	h.watchers[id] = ch
	return id, ch
}

func (h *hub) remove(id int) {
	if w, ok := h.watchers[id]; ok {
		delete(h.watchers, id)
		close(w)
	}
}

func (h *hub) broadcast(snap Snapshot) {
	for _, w := range h.watchers {
		select {
		case w <- snap:
		default:
			// drop the oldest pending snapshot so the latest always lands
			select {
			case <-w:
			default:
			}
			w <- snap
		}
	}
}

func (h *hub) closeAll() {
	for id := range h.watchers {
		h.remove(id)
	}
}

func closedWatch(last Snapshot) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	ch <- last
	close(ch)
	return ch, func() {}
}

func settledChan() <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
