package anchor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/go-msgswitch/anchor"
)

func TestSliceRoundTrip(t *testing.T) {
	owner := anchor.Slice[byte]{1, 2, 3, 4}
	a, view := owner.IntoAnchor()
	require.Len(t, view, 4)

	view[0] = 9
	back := a.Reassemble()
	assert.Equal(t, anchor.Slice[byte]{9, 2, 3, 4}, back)
}

func TestScalarRoundTrip(t *testing.T) {
	owner := &anchor.Scalar[int32]{V: 42}
	a, view := owner.IntoAnchor()
	require.Len(t, view, 1)

	view[0] = 7
	back := a.Reassemble()
	assert.Equal(t, int32(7), back.V)
}

func TestReadableVariants(t *testing.T) {
	s := anchor.Slice[byte]{1, 2, 3}
	assert.Equal(t, []byte{1, 2, 3}, s.ReadableView())

	b := anchor.Borrowed[byte]{4, 5}
	assert.Equal(t, []byte{4, 5}, b.ReadableView())

	sh := anchor.NewShared[byte]([]byte{6, 7})
	assert.Equal(t, []byte{6, 7}, sh.ReadableView())
}

func TestBytesReinterpretsElements(t *testing.T) {
	s := []int32{1, 2}
	raw := anchor.Bytes(s)
	assert.Len(t, raw, 8)
}

func TestBytesEmpty(t *testing.T) {
	assert.Nil(t, anchor.Bytes[byte](nil))
}
