package bind_group_provider

// releaser is a GPU object a provider may own.
type releaser interface {
	comparable
	Release()
}

// bindings holds the resources of one kind, keyed by binding index, and remembers which of them
// are borrowed from another owner.
type bindings[T releaser] struct {
	res      map[int]T
	borrowed map[int]bool
}

func newBindings[T releaser]() bindings[T] {
	return bindings[T]{res: make(map[int]T), borrowed: make(map[int]bool)}
}

// set stores an owned resource, replacing any borrow at the binding.
func (b *bindings[T]) set(binding int, v T) {
	b.res[binding] = v
	delete(b.borrowed, binding)
}

func (b *bindings[T]) borrow(binding int, v T) {
	b.res[binding] = v
	b.borrowed[binding] = true
}

func (b *bindings[T]) get(binding int) T {
	return b.res[binding]
}

// release releases every owned resource and forgets all bindings.
func (b *bindings[T]) release() {
	var zero T
	for i, v := range b.res {
		if v != zero && !b.borrowed[i] {
			v.Release()
		}
	}
	clear(b.res)
	clear(b.borrowed)
}
