package ecs

// Each2 iterates over entities that have both component A and B.
// It walks the smaller store and looks up the other.
func Each2[A, B any](sa *Store[A], sb *Store[B], fn func(EntityID, *A, *B)) {
	if sa.Len() <= sb.Len() {
		sa.Each(func(id EntityID, a *A) {
			if b, ok := sb.Get(id); ok {
				fn(id, a, b)
			}
		})
		return
	}
	sb.Each(func(id EntityID, b *B) {
		if a, ok := sa.Get(id); ok {
			fn(id, a, b)
		}
	})
}
