package music

const maxRecent = 100

// recentSet is an insertion-ordered set of track identifiers with FIFO eviction.
type recentSet struct {
	max   int
	order []string
	index map[string]struct{}
}

func newRecentSet(max int) *recentSet {
	return &recentSet{
		max:   max,
		index: make(map[string]struct{}, max),
	}
}

// Add records id as the most recent entry, evicting the oldest past capacity.
func (r *recentSet) Add(id string) {
	if id == "" {
		return
	}
	if _, ok := r.index[id]; ok {
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.order = append(r.order, id)
	r.index[id] = struct{}{}

	for len(r.order) > r.max {
		delete(r.index, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *recentSet) Contains(id string) bool {
	_, ok := r.index[id]
	return ok
}

func (r *recentSet) Len() int {
	return len(r.order)
}

// List returns the identifiers oldest first.
func (r *recentSet) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
