package shared

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock(t *testing.T) {
	t.Run("try acquire fails while held", func(t *testing.T) {
		var l Lock
		l.Acquire()
		assert.False(t, l.TryAcquire())
		l.Release()
		assert.True(t, l.TryAcquire())
		l.Release()
	})

	t.Run("do returns the work error and releases", func(t *testing.T) {
		var l Lock
		boom := errors.New("boom")

		err := l.Do(func() error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.True(t, l.TryAcquire(), "lock should be free after an error")
		l.Release()
	})

	t.Run("do releases after a panic", func(t *testing.T) {
		var l Lock

		assert.Panics(t, func() {
			_ = l.Do(func() error { panic("inside critical section") })
		})
		assert.True(t, l.TryAcquire(), "lock should be free after a panic")
		l.Release()
	})
}

func TestAtomic(t *testing.T) {
	t.Run("get set swap", func(t *testing.T) {
		a := NewAtomic("first")
		assert.Equal(t, "first", a.Get())

		a.Set("second")
		assert.Equal(t, "second", a.Get())

		old := a.Swap("third")
		assert.Equal(t, "second", old)
		assert.Equal(t, "third", a.Get())
	})

	t.Run("modify returns previous value", func(t *testing.T) {
		a := NewAtomic(10)
		old := a.Modify(func(v int) int { return v * 2 })
		assert.Equal(t, 10, old)
		assert.Equal(t, 20, a.Get())
	})

	t.Run("with computes a derived value", func(t *testing.T) {
		a := NewAtomic([]string{"a", "b", "c"})
		n := With(a, func(v []string) int { return len(v) })
		assert.Equal(t, 3, n)
	})

	t.Run("concurrent modify loses no increments", func(t *testing.T) {
		const n = 500
		a := NewAtomic(0)

		var wg sync.WaitGroup
		olds := make([]int, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				olds[i] = a.Modify(func(v int) int { return v + 1 })
			}(i)
		}
		wg.Wait()

		assert.Equal(t, n, a.Get())

		sort.Ints(olds)
		for i, v := range olds {
			require.Equal(t, i, v, "old values should be a permutation of 0..n-1")
		}
	})
}

func TestDict(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		d := NewDict[string, int]()
		assert.True(t, d.IsEmpty())

		_, ok := d.Value("missing")
		assert.False(t, ok)

		d.Set("a", 1)
		d.Set("b", 2)
		d.Set("a", 3)

		v, ok := d.Value("a")
		assert.True(t, ok)
		assert.Equal(t, 3, v)
		assert.Equal(t, 2, d.Len())
		assert.False(t, d.IsEmpty())

		d.Remove("a")
		d.Remove("not-there")
		_, ok = d.Value("a")
		assert.False(t, ok)
		assert.Equal(t, 1, d.Len())

		d.Clear()
		assert.True(t, d.IsEmpty())
	})

	t.Run("assign with absent value removes", func(t *testing.T) {
		d := NewDict[string, string]()
		d.Assign("k", "v", true)
		v, ok := d.Value("k")
		assert.True(t, ok)
		assert.Equal(t, "v", v)

		d.Assign("k", "", false)
		_, ok = d.Value("k")
		assert.False(t, ok)
	})

	t.Run("take returns and removes", func(t *testing.T) {
		d := NewDict[string, int]()
		d.Set("x", 7)

		v, ok := d.Take("x")
		assert.True(t, ok)
		assert.Equal(t, 7, v)

		_, ok = d.Take("x")
		assert.False(t, ok)
	})

	t.Run("update", func(t *testing.T) {
		d := NewDict[string, int]()

		d.Update("n", func(v int, exists bool) (int, bool) {
			assert.False(t, exists)
			return v + 1, true
		})
		d.Update("n", func(v int, exists bool) (int, bool) {
			assert.True(t, exists)
			return v + 1, true
		})
		v, _ := d.Value("n")
		assert.Equal(t, 2, v)

		d.Update("n", func(v int, exists bool) (int, bool) { return 0, false })
		assert.True(t, d.IsEmpty())

		d.Update("absent", func(v int, exists bool) (int, bool) { return 0, false })
		assert.True(t, d.IsEmpty())
	})

	t.Run("copy is isolated from later writes", func(t *testing.T) {
		d := NewDict[string, int]()
		d.Set("a", 1)

		snapshot := d.Copy()
		d.Set("b", 2)
		d.Set("a", 100)

		assert.Equal(t, map[string]int{"a": 1}, snapshot)

		snapshot["c"] = 3
		_, ok := d.Value("c")
		assert.False(t, ok, "writes to a copy must not leak back")
	})

	t.Run("range stops early and sees one snapshot", func(t *testing.T) {
		d := NewDict[int, int]()
		for i := 0; i < 10; i++ {
			d.Set(i, i)
		}

		seen := 0
		d.Range(func(k, v int) bool {
			d.Set(k+100, v)
			seen++
			return seen < 5
		})
		assert.Equal(t, 5, seen)
		assert.Equal(t, 15, d.Len())
	})

	t.Run("keys", func(t *testing.T) {
		d := NewDict[string, bool]()
		d.Set("x", true)
		d.Set("y", true)

		keys := d.Keys()
		sort.Strings(keys)
		assert.Equal(t, []string{"x", "y"}, keys)
	})

	t.Run("concurrent set with distinct keys", func(t *testing.T) {
		const n = 200
		d := NewDict[string, int]()

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				d.Set(fmt.Sprintf("key-%d", i), i)
			}(i)
		}
		wg.Wait()

		require.Equal(t, n, d.Len())
		snapshot := d.Copy()
		for i := 0; i < n; i++ {
			assert.Equal(t, i, snapshot[fmt.Sprintf("key-%d", i)])
		}
	})

	t.Run("concurrent take delivers once", func(t *testing.T) {
		const n = 50
		d := NewDict[string, int]()
		d.Set("only", 1)

		var wg sync.WaitGroup
		var mu sync.Mutex
		winners := 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := d.Take("only"); ok {
					mu.Lock()
					winners++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
	})
}
