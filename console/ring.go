package console

// ring is a fixed capacity circular buffer of entries. It is not safe for concurrent use,
// Recorder guards it with its own lock.
type ring struct {
	size int
	over bool
	logs []Entry
}

func newRing(capacity int) *ring {
	return &ring{logs: make([]Entry, capacity)}
}

func (r *ring) len() int {
	if r.over {
		return cap(r.logs)
	}
	return r.size
}

// add stores the entry and reports whether the oldest entry was evicted to make room for it.
func (r *ring) add(e Entry) (evicted bool) {
	evicted = r.over || r.size == cap(r.logs)
	idx := r.size % cap(r.logs)
	r.logs[idx] = e
	r.size = idx + 1
	if evicted {
		r.over = true
	}
	return evicted
}

// all returns entries from the oldest to the newest. Messages are copied deeply,
// so that the caller may modify them freely.
func (r *ring) all() []Entry {
	ret := make([]Entry, 0, r.len())
	if r.over {
		ret = append(ret, r.logs[r.size:]...)
	}
	ret = append(ret, r.logs[:r.size]...)
	for i := range ret {
		ret[i].Message = cloneList(ret[i].Message)
	}
	return ret
}

// cloneValue copies the containers Serialize produces, other values are immutable.
func cloneValue(v any) any {
	switch t := v.(type) {
	case []any:
		return cloneList(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func cloneList(l []any) []any {
	if l == nil {
		return nil
	}
	out := make([]any, len(l))
	for i, e := range l {
		out[i] = cloneValue(e)
	}
	return out
}

func (r *ring) reset() {
	clear(r.logs)
	r.size = 0
	r.over = false
}
