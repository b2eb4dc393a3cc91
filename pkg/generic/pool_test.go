package generic

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolResetsReturnedValues(t *testing.T) {
	p := NewPool(func() *bytes.Buffer { return new(bytes.Buffer) },
		WithReset(func(b *bytes.Buffer) { b.Reset() }))

	buf := p.Get()
	buf.WriteString("snapshot")
	p.Put(buf)
	require.Zero(t, buf.Len())
	require.Zero(t, p.Get().Len())
}

func TestPoolDropsRefusedValues(t *testing.T) {
	resets := 0
	p := NewHotPool(func() []byte { return make([]byte, 0, 8) }, 2,
		WithRetain(func(b []byte) bool { return cap(b) <= 8 }),
		WithReset(func([]byte) { resets++ }))

	p.Put(make([]byte, 0, 64))
	require.Zero(t, resets)

	p.Put(make([]byte, 0, 4))
	require.Equal(t, 1, resets)
	require.LessOrEqual(t, cap(p.Get()), 8)
}
