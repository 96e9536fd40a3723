package mapview

import (
	"sort"
	"sync"

	"github.com/stwalsh4118/parcelbook/internal/models"
)

// Store holds the session's selection and save state. All methods are safe
// for concurrent use; getters return copies.
type Store struct {
	selected map[int64]struct{}
	checked  map[int64]struct{}
	saved    map[int64]string
	temp     map[int64]string
	details  map[int64]models.Property
	mu       sync.RWMutex
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		selected: make(map[int64]struct{}),
		checked:  make(map[int64]struct{}),
		saved:    make(map[int64]string),
		temp:     make(map[int64]string),
		details:  make(map[int64]models.Property),
	}
}

// IsSelected reports whether id is in the selection set.
func (s *Store) IsSelected(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

// Select adds id to the selection set.
func (s *Store) Select(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected[id] = struct{}{}
}

// Deselect removes id from the selection set and drops its temp number and skip-trace mark.
func (s *Store) Deselect(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selected, id)
	delete(s.temp, id)
	delete(s.checked, id)
}

// Selected returns the selected ids in ascending order.
func (s *Store) Selected() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.selected)
}

// SavedNumber returns the display number of a saved parcel. A parcel saved
// optimistically has an empty number until the server answers.
func (s *Store) SavedNumber(id int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.saved[id]
	return n, ok
}

// IsSaved reports whether id is in the saved set.
func (s *Store) IsSaved(id int64) bool {
	_, ok := s.SavedNumber(id)
	return ok
}

// SetSaved marks id saved under number.
func (s *Store) SetSaved(id int64, number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[id] = number
}

// RemoveSaved removes id from the saved set.
func (s *Store) RemoveSaved(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.saved, id)
}

// ReplaceSaved swaps the whole saved set, e.g. after listing it from the server.
func (s *Store) ReplaceSaved(saved map[int64]string) {
	next := make(map[int64]string, len(saved))
	for id, n := range saved {
		next[id] = n
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = next
}

// SavedCount returns the size of the saved set.
func (s *Store) SavedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.saved)
}

// TempNumber returns the session number shown for a selected, unsaved parcel.
func (s *Store) TempNumber(id int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.temp[id]
	return n, ok
}

// SetTemp records a session number for id.
func (s *Store) SetTemp(id int64, number string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp[id] = number
}

// DropTemp forgets the session number of id.
func (s *Store) DropTemp(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.temp, id)
}

// TempNumbers returns every session number except the one held by id, sorted.
func (s *Store) TempNumbers(except int64) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.temp))
	for id, n := range s.temp {
		if id != except {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Detail returns the cached record of id.
func (s *Store) Detail(id int64) (models.Property, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.details[id]
	return p, ok
}

// SetDetail caches a record.
func (s *Store) SetDetail(p models.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[p.ID] = p
}

// ToggleChecked flips the skip-trace mark of a selected parcel and reports the new state.
func (s *Store) ToggleChecked(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.checked[id]; ok {
		delete(s.checked, id)
		return false
	}
	if _, ok := s.selected[id]; !ok {
		return false
	}
	s.checked[id] = struct{}{}
	return true
}

// CheckAll marks every selected parcel for skip trace.
func (s *Store) CheckAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = make(map[int64]struct{}, len(s.selected))
	for id := range s.selected {
		s.checked[id] = struct{}{}
	}
}

// UncheckAll clears every skip-trace mark.
func (s *Store) UncheckAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checked = make(map[int64]struct{})
}

// Checked returns the ids marked for skip trace, ascending.
func (s *Store) Checked() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.checked)
}

// ClearSession drops the selection, session numbers, skip-trace marks and
// cached details. The saved set is kept.
func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = make(map[int64]struct{})
	s.checked = make(map[int64]struct{})
	s.temp = make(map[int64]string)
	s.details = make(map[int64]models.Property)
}

// featureState is a consistent read of everything Render needs.
type featureState struct {
	saved    map[int64]string
	temp     map[int64]string
	selected map[int64]struct{}
}

func (s *Store) snapshot() featureState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := featureState{
		saved:    make(map[int64]string, len(s.saved)),
		temp:     make(map[int64]string, len(s.temp)),
		selected: make(map[int64]struct{}, len(s.selected)),
	}
	for k, v := range s.saved {
		st.saved[k] = v
	}
	for k, v := range s.temp {
		st.temp[k] = v
	}
	for k := range s.selected {
		st.selected[k] = struct{}{}
	}
	return st
}

func sortedKeys(m map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
