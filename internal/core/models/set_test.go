package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func fish(id EntityID) *Entity {
	return NewEntity(id, KindEnemy, "sardine", Bounds{Width: 10, Height: 10}, Movement{})
}

func TestSetBasicOperations(t *testing.T) {
	s := NewSet(4)
	require.True(t, s.Add(fish(3)))
	require.True(t, s.Add(fish(1)))
	require.False(t, s.Add(fish(1)), "duplicate id")
	require.False(t, s.Add(nil))

	require.Equal(t, 2, s.Len())
	require.Equal(t, []EntityID{1, 3}, s.IDs())

	e, ok := s.Remove(3)
	require.True(t, ok)
	require.Equal(t, EntityID(3), e.ID())
	_, ok = s.Remove(3)
	require.False(t, ok)
	require.Equal(t, 1, s.Len())
	require.True(t, s.Contains(1))
}

func TestSetRangeToleratesMutation(t *testing.T) {
	s := NewSet(0)
	for id := EntityID(1); id <= 10; id++ {
		s.Add(fish(id))
	}
	visited := 0
	s.Range(func(e *Entity) bool {
		visited++
		s.Remove(e.ID())
		s.Add(fish(e.ID() + 100))
		return true
	})
	require.Equal(t, 10, visited)
	require.Equal(t, 10, s.Len())
}

func TestSetConcurrentAccess(t *testing.T) {
	s := NewSet(8)
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(base EntityID) {
			defer wg.Done()
			for i := EntityID(0); i < 250; i++ {
				s.Add(fish(base + i))
				s.Range(func(*Entity) bool { return true })
			}
		}(EntityID(w * 1000))
	}
	wg.Wait()
	require.Equal(t, 1000, s.Len())
}
