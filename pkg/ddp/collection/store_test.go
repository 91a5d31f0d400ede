package collection

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/ddp/pkg/ddp/message"
)

func TestStoreApply(t *testing.T) {
	s := NewStore()

	assert.True(t, s.Apply(message.Decode(`{"msg":"added","collection":"posts","id":"p1","fields":{"title":"hi","draft":true}}`)))
	doc, ok := s.Get("posts", "p1")
	require.True(t, ok)
	assert.Equal(t, Document{"title": "hi", "draft": true}, doc)

	assert.True(t, s.Apply(message.Decode(`{"msg":"changed","collection":"posts","id":"p1","fields":{"title":"hello"},"cleared":["draft"]}`)))
	doc, ok = s.Get("posts", "p1")
	require.True(t, ok)
	assert.Equal(t, Document{"title": "hello"}, doc)

	assert.True(t, s.Apply(message.Decode(`{"msg":"addedBefore","collection":"posts","id":"p2","fields":{"title":"second"},"before":null}`)))
	assert.Equal(t, 2, s.Len("posts"))

	assert.True(t, s.Apply(message.Decode(`{"msg":"movedBefore","collection":"posts","id":"p2","before":"p1"}`)))
	assert.Equal(t, 2, s.Len("posts"))

	assert.True(t, s.Apply(message.Decode(`{"msg":"removed","collection":"posts","id":"p1"}`)))
	_, ok = s.Get("posts", "p1")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len("posts"))

	assert.False(t, s.Apply(message.Decode(`{"msg":"result","id":"1"}`)))
}

func TestStoreAddedWithoutFields(t *testing.T) {
	s := NewStore()
	s.Added("c", "d", nil)

	doc, ok := s.Get("c", "d")
	require.True(t, ok)
	assert.Empty(t, doc)
}

func TestStoreChangedUnknownDocument(t *testing.T) {
	s := NewStore()
	s.Changed("c", "d", map[string]any{"a": 1}, []string{"b"})

	doc, ok := s.Get("c", "d")
	require.True(t, ok)
	assert.Equal(t, Document{"a": 1}, doc)
}

func TestStoreRemovedUnknown(t *testing.T) {
	s := NewStore()
	s.Removed("nope", "nothing")
	assert.Equal(t, 0, s.Len("nope"))
	assert.Empty(t, s.Documents("nope"))
}

func TestStoreReadsAreCopies(t *testing.T) {
	s := NewStore()
	s.Added("c", "d", map[string]any{"a": 1})

	doc, _ := s.Get("c", "d")
	doc["a"] = 2

	docs := s.Documents("c")
	docs["d"]["a"] = 3
	docs["e"] = Document{}

	doc, _ = s.Get("c", "d")
	assert.Equal(t, 1, doc["a"])
	assert.Equal(t, 1, s.Len("c"))
}

func TestStoreAddedCopiesFields(t *testing.T) {
	s := NewStore()
	fields := map[string]any{"a": 1}
	s.Added("c", "d", fields)
	fields["a"] = 2

	doc, _ := s.Get("c", "d")
	assert.Equal(t, 1, doc["a"])
}

func TestStoreCollectionsAndReset(t *testing.T) {
	s := NewStore()
	s.Added("a", "1", nil)
	s.Added("b", "1", nil)

	names := s.Collections()
	sort.Strings(names)
	assert.Equal(t, []string{"a", "b"}, names)

	s.Reset()
	assert.Empty(t, s.Collections())
}

func TestStoreConcurrentChanges(t *testing.T) {
	const n = 100
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Changed("counters", "doc", map[string]any{fmt.Sprintf("f%d", i): i}, nil)
		}(i)
	}
	wg.Wait()

	doc, ok := s.Get("counters", "doc")
	require.True(t, ok)
	assert.Len(t, doc, n)
	assert.Equal(t, []string{"counters"}, s.Collections())
}
