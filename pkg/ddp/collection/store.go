// Package collection caches the documents a server publishes to the client.
package collection

import (
	"maps"

	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/ddp/pkg/ddp/shared"
)

// Document is the field map of one cached document.
type Document map[string]any

// Store holds one Dict of documents per collection. Each document update is
// atomic, but nothing orders updates across documents or collections.
type Store struct {
	collections *shared.Dict[string, *shared.Dict[string, Document]]
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{collections: shared.NewDict[string, *shared.Dict[string, Document]]()}
}

// Apply updates the cache from a data message and reports whether the
// message was a data message. Ordering hints (addedBefore, movedBefore) are
// not tracked.
func (s *Store) Apply(msg message.Message) bool {
	switch msg.Kind() {
	case message.KindAdded, message.KindAddedBefore:
		s.Added(msg.Collection(), msg.ID(), msg.Fields())
	case message.KindChanged:
		s.Changed(msg.Collection(), msg.ID(), msg.Fields(), msg.Cleared())
	case message.KindRemoved:
		s.Removed(msg.Collection(), msg.ID())
	case message.KindMovedBefore:
	default:
		return false
	}
	return true
}

// Added stores a document, replacing any previous version.
func (s *Store) Added(collection, id string, fields map[string]any) {
	doc := Document(maps.Clone(fields))
	if doc == nil {
		doc = Document{}
	}
	s.documents(collection).Set(id, doc)
}

// Changed merges fields into a document and deletes the cleared fields. A
// change to an unknown document creates it.
func (s *Store) Changed(collection, id string, fields map[string]any, cleared []string) {
	s.documents(collection).Update(id, func(old Document, _ bool) (Document, bool) {
		next := Document(maps.Clone(old))
		if next == nil {
			next = Document{}
		}
		for k, v := range fields {
			next[k] = v
		}
		for _, k := range cleared {
			delete(next, k)
		}
		return next, true
	})
}

// Removed drops a document. Removing an unknown document does nothing.
func (s *Store) Removed(collection, id string) {
	if docs, ok := s.collections.Value(collection); ok {
		docs.Remove(id)
	}
}

// Get returns a copy of one document.
func (s *Store) Get(collection, id string) (Document, bool) {
	docs, ok := s.collections.Value(collection)
	if !ok {
		return nil, false
	}
	doc, ok := docs.Value(id)
	if !ok {
		return nil, false
	}
	return maps.Clone(doc), true
}

// Documents returns a snapshot of one collection keyed by document id.
func (s *Store) Documents(collection string) map[string]Document {
	docs, ok := s.collections.Value(collection)
	if !ok {
		return map[string]Document{}
	}
	out := make(map[string]Document)
	docs.Range(func(id string, doc Document) bool {
		out[id] = maps.Clone(doc)
		return true
	})
	return out
}

// Len returns the number of documents cached for collection.
func (s *Store) Len(collection string) int {
	docs, ok := s.collections.Value(collection)
	if !ok {
		return 0
	}
	return docs.Len()
}

// Collections returns the names of the collections seen so far.
func (s *Store) Collections() []string {
	return s.collections.Keys()
}

// Reset drops every cached document.
func (s *Store) Reset() {
	s.collections.Clear()
}

// documents returns the Dict for collection, creating it on first use.
func (s *Store) documents(collection string) *shared.Dict[string, Document] {
	if docs, ok := s.collections.Value(collection); ok {
		return docs
	}

	var docs *shared.Dict[string, Document]
	s.collections.Update(collection, func(existing *shared.Dict[string, Document], exists bool) (*shared.Dict[string, Document], bool) {
		if exists {
			docs = existing
			return existing, true
		}
		docs = shared.NewDict[string, Document]()
		return docs, true
	})
	return docs
}
