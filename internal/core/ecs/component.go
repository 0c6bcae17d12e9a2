package ecs

// Removable is implemented by all component stores so the World can
// bulk-remove an entity's data from every store on destroy.
type Removable interface {
	Remove(id EntityID)
}

// Store is a sparse set of component pointers. Components are packed densely
// for iteration; lookups go through a slice indexed by handle index and are
// checked against the full handle, so a stale generation never matches.
type Store[T any] struct {
	sparse []uint32 // handle index -> dense slot + 1, 0 = empty
	ids    []EntityID
	values []*T
}

func NewStore[T any]() *Store[T] {
	return &Store[T]{
		sparse: make([]uint32, 0, 256),
		ids:    make([]EntityID, 0, 256),
		values: make([]*T, 0, 256),
	}
}

// slot returns the dense position holding id's index, whatever its generation.
func (s *Store[T]) slot(id EntityID) (int, bool) {
	idx := int(id.Index())
	if idx >= len(s.sparse) || s.sparse[idx] == 0 {
		return 0, false
	}
	return int(s.sparse[idx] - 1), true
}

// Set stores c for id, replacing a component held by an older generation
// of the same index.
func (s *Store[T]) Set(id EntityID, c *T) {
	if pos, ok := s.slot(id); ok {
		s.ids[pos] = id
		s.values[pos] = c
		return
	}
	idx := int(id.Index())
	if idx >= len(s.sparse) {
		s.sparse = append(s.sparse, make([]uint32, idx+1-len(s.sparse))...)
	}
	s.ids = append(s.ids, id)
	s.values = append(s.values, c)
	s.sparse[idx] = uint32(len(s.ids))
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	pos, ok := s.slot(id)
	if !ok || s.ids[pos] != id {
		return nil, false
	}
	return s.values[pos], true
}

func (s *Store[T]) Has(id EntityID) bool {
	_, ok := s.Get(id)
	return ok
}

// Remove swaps the last component into id's slot.
func (s *Store[T]) Remove(id EntityID) {
	pos, ok := s.slot(id)
	if !ok || s.ids[pos] != id {
		return
	}
	last := len(s.ids) - 1
	moved := s.ids[last]
	s.ids[pos] = moved
	s.values[pos] = s.values[last]
	s.sparse[moved.Index()] = uint32(pos + 1)

	s.values[last] = nil
	s.ids = s.ids[:last]
	s.values = s.values[:last]
	s.sparse[id.Index()] = 0
}

func (s *Store[T]) Len() int {
	return len(s.ids)
}

// Each visits every component in dense order, back to front. fn must not add
// to the store; removing the current id is allowed.
func (s *Store[T]) Each(fn func(EntityID, *T)) {
	for i := len(s.ids) - 1; i >= 0; i-- {
		fn(s.ids[i], s.values[i])
	}
}
