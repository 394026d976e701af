// Package geo collects small helpers around datasets and job parameters:
// filtering collections, cartesian products of option sets, date parsing,
// coordinate grids, variable lookup by dimension, variable stacking and
// fixed-size batching.
package geo

import "fmt"

// Collection is a closed set of container shapes: List or *Mapping.
type Collection[T any] interface {
	Len() int
	collection()
}

// List is an ordered sequence.
type List[T any] []T

func (l List[T]) Len() int   { return len(l) }
func (List[T]) collection() {}

// Mapping is a keyed collection that remembers insertion order.
type Mapping[T any] struct {
	keys   []string
	values map[string]T
}

// NewMapping creates an empty mapping.
func NewMapping[T any]() *Mapping[T] {
	return &Mapping[T]{values: make(map[string]T)}
}

// Set stores v under key, appending key if new. The zero Mapping is ready
// to use.
func (m *Mapping[T]) Set(key string, v T) {
	if m.values == nil {
		m.values = make(map[string]T)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value under key.
func (m *Mapping[T]) Get(key string) (T, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Mapping[T]) Keys() []string { return append([]string(nil), m.keys...) }

func (m *Mapping[T]) Len() int     { return len(m.keys) }
func (*Mapping[T]) collection() {}

// Select returns the elements of c matching pred, in the same shape as c.
func Select[T any](c Collection[T], pred func(T) bool) Collection[T] {
	switch c := c.(type) {
	case List[T]:
		out := List[T]{}
		for _, v := range c {
			if pred(v) {
				out = append(out, v)
			}
		}
		return out
	case *Mapping[T]:
		out := NewMapping[T]()
		for _, k := range c.keys {
			if v := c.values[k]; pred(v) {
				out.Set(k, v)
			}
		}
		return out
	default:
		panic(fmt.Sprintf("geo: unknown collection %T", c))
	}
}

// First returns the first element of c matching pred. For a mapping,
// "first" follows insertion order.
func First[T any](c Collection[T], pred func(T) bool) (T, bool) {
	var zero T
	switch c := c.(type) {
	case List[T]:
		for _, v := range c {
			if pred(v) {
				return v, true
			}
		}
		return zero, false
	case *Mapping[T]:
		for _, k := range c.keys {
			if v := c.values[k]; pred(v) {
				return v, true
			}
		}
		return zero, false
	default:
		panic(fmt.Sprintf("geo: unknown collection %T", c))
	}
}

// Unlist returns the only element of a single-element List. Mappings are
// never unwrapped.
func Unlist[T any](c Collection[T]) (T, bool) {
	var zero T
	switch c := c.(type) {
	case List[T]:
		if len(c) == 1 {
			return c[0], true
		}
		return zero, false
	case *Mapping[T]:
		return zero, false
	default:
		panic(fmt.Sprintf("geo: unknown collection %T", c))
	}
}
