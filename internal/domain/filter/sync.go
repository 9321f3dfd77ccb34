// internal/domain/filter/sync.go

package filter

import "sync"

// HistoryWriter replaces the current page URL's query string without
// triggering navigation.
type HistoryWriter interface {
	ReplaceQuery(query string)
}

// DefaultView is the explicit landing view applied on the first mount
// when the URL names neither office nor candidate.
type DefaultView struct {
	Year      Year
	Office    Office
	Candidate int
}

// URLSync keeps the page URL in step with State. It is invoked
// explicitly: Init on the initial load and Push after every state
// change.
type URLSync struct {
	writer      HistoryWriter
	defaultView *DefaultView

	mu          sync.Mutex
	initialized bool
	last        string
}

// NewURLSync creates a synchroniser. A nil defaultView disables the
// landing view so an empty URL shows the aggregate map.
func NewURLSync(writer HistoryWriter, defaultView *DefaultView) *URLSync {
	return &URLSync{
		writer:      writer,
		defaultView: defaultView,
	}
}

// Init decodes the state carried by the URL on first load. The second
// result reports whether the one-time default view was applied. Init
// only applies the default view on its first call.
func (u *URLSync) Init(rawQuery string) (State, bool) {
	u.mu.Lock()
	first := !u.initialized
	u.initialized = true
	u.mu.Unlock()

	s := Decode(rawQuery)
	applied := false
	if first && u.defaultView != nil && wantsDefaultView(rawQuery) && !s.HasCandidate() {
		s = s.WithScope(u.defaultView.Year, u.defaultView.Office, u.defaultView.Candidate)
		applied = true
	}

	u.Push(s)
	return s, applied
}

// Push writes the encoding of s to the page history. Writes that would
// not change the URL are skipped.
func (u *URLSync) Push(s State) string {
	query := Encode(s)

	u.mu.Lock()
	if query == u.last {
		u.mu.Unlock()
		return query
	}
	u.last = query
	u.mu.Unlock()

	if u.writer != nil {
		u.writer.ReplaceQuery(query)
	}
	return query
}

// Current returns the last query string written
func (u *URLSync) Current() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}
