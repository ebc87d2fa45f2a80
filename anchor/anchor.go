// Package anchor implements buffer anchoring: splitting an owned buffer into
// a raw, move-stable anchor plus a view the native messaging layer can write
// into or read from, and reassembling the owner once a request completes.
//
// Go's garbage collector never relocates heap objects referenced by a live
// slice, so the storage-address half of the problem (moves invalidating
// pointers a native layer was handed) does not exist here. What
// still matters, and what this package preserves, is the *ownership*
// discipline this design requires: once a buffer is handed to a post, nothing
// else may read or write it until it is reassembled on completion. Each
// owner type below is consumed into an anchor value and a view; the two are
// never both reachable from application code at once.
package anchor

import "unsafe"

// Elem is implemented by element types whose in-memory layout is
// bit-identical to a native datatype: fixed-width, no pointers, safe to
// reinterpret as a raw byte view for the wire.
type Elem interface {
	~int8 | ~uint8 | ~int16 | ~uint16 | ~int32 | ~uint32 | ~int64 | ~uint64 | ~float32 | ~float64
}

// Bytes reinterprets s as a raw byte view, exactly as the native layer
// receives it. The returned slice aliases s; callers must not retain s
// themselves once ownership has passed into a post.
func Bytes[T Elem](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*size)
}

// Readable is a buffer that can supply a stable view for a send without
// being split into an anchor: the owner is simply moved into the request
// and dropped on completion.
type Readable[T Elem] interface {
	ReadableView() []T
}

// WritableAnchor is a buffer that can be split into an Anchor (which keeps
// the storage alive while a receive is outstanding) and the mutable view
// the native layer writes into.
type WritableAnchor[T Elem] interface {
	IntoAnchor() (SliceAnchor[T], []T)
}

// SliceAnchor is the move-stable descriptor for an owned contiguous buffer:
// a pointer, a length, and (implicitly, via Go's slice header) a capacity.
// It is POD-like — copying it is safe, and Reassemble never runs a
// destructor, matching the anchor contract.
type SliceAnchor[T Elem] struct {
	data []T
}

// View returns the mutable view backed by this anchor.
func (a SliceAnchor[T]) View() []T { return a.data }

// Reassemble reconstructs the Slice owner that produced this anchor.
func (a SliceAnchor[T]) Reassemble() Slice[T] { return Slice[T](a.data) }

// Slice is an owned, uniquely accessible contiguous buffer: the "owned
// contiguous buffer" variant (anchor = pointer + length [+ capacity]). It is
// Readable for sends and splits into a SliceAnchor for receives.
type Slice[T Elem] []T

func (s Slice[T]) ReadableView() []T { return s }

func (s Slice[T]) IntoAnchor() (SliceAnchor[T], []T) {
	return SliceAnchor[T]{data: s}, s
}

// Scalar is a uniquely owned single-element buffer (anchor = pointer).
type Scalar[T Elem] struct {
	V T
}

// ScalarAnchor is the move-stable descriptor for a Scalar.
type ScalarAnchor[T Elem] struct {
	ptr *T
}

func (a ScalarAnchor[T]) View() []T { return unsafe.Slice(a.ptr, 1) }

// Reassemble reconstructs the Scalar owner that produced this anchor.
func (a ScalarAnchor[T]) Reassemble() *Scalar[T] {
	return (*Scalar[T])(unsafe.Pointer(a.ptr))
}

func (s *Scalar[T]) ReadableView() []T { return unsafe.Slice(&s.V, 1) }

func (s *Scalar[T]) IntoAnchor() (ScalarAnchor[T], []T) {
	return ScalarAnchor[T]{ptr: &s.V}, unsafe.Slice(&s.V, 1)
}

// Borrowed is a view whose storage the caller guarantees will outlive the
// operation by keeping it alive in its own scope; it carries no anchor of
// its own because none is needed (the "borrowed view" variant). Borrowed is
// Readable only — it never appears on the receive side, since a receive
// always needs an owner to hand back to the caller on completion.
type Borrowed[T Elem] []T

func (b Borrowed[T]) ReadableView() []T { return b }

// Shared is a shared, read-only contiguous buffer (the "shared read-only
// owner" variant). It is supported for sends only: reassembly is
// unnecessary, the owner is simply dropped once the send completes. Go's
// garbage collector keeps the backing array alive for as long as any Shared
// value referencing it exists, which is exactly the semantics the owner
// needs while a send is outstanding.
type Shared[T Elem] struct {
	data []T
}

// NewShared wraps s as a shared, read-only send buffer.
func NewShared[T Elem](s []T) Shared[T] { return Shared[T]{data: s} }

func (s Shared[T]) ReadableView() []T { return s.data }
