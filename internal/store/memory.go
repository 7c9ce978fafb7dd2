package store

import (
	"context"
	"sync"

	"github.com/ovstage/stagehub/internal/domain"
)

// memCollection is a threadsafe in-memory collection with value-copy
// semantics: documents are stored and returned by value, so callers never
// alias live storage.
type memCollection[T Entity] struct {
	mu   sync.RWMutex
	docs map[string]T
}

func newMemCollection[T Entity]() *memCollection[T] {
	return &memCollection[T]{docs: make(map[string]T)}
}

func (c *memCollection[T]) Create(_ context.Context, doc T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.docs[doc.Key()]; ok {
		return ErrDuplicate
	}
	c.docs[doc.Key()] = doc
	return nil
}

func (c *memCollection[T]) Get(_ context.Context, id string) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return doc, nil
}

func (c *memCollection[T]) FindOne(_ context.Context, match func(T) bool) (T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, doc := range c.docs {
		if match(doc) {
			return doc, nil
		}
	}
	var zero T
	return zero, ErrNotFound
}

func (c *memCollection[T]) Find(_ context.Context, match func(T) bool) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []T
	for _, doc := range c.docs {
		if match(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (c *memCollection[T]) Update(_ context.Context, id string, mutate func(*T)) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	mutate(&doc)
	c.docs[id] = doc
	return doc, nil
}

func (c *memCollection[T]) Delete(_ context.Context, id string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.docs[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	delete(c.docs, id)
	return doc, nil
}

// NewMemory builds a Store backed by process memory.
func NewMemory() *Store {
	return &Store{
		Users:                 newMemCollection[domain.User](),
		Stages:                newMemCollection[domain.Stage](),
		Groups:                newMemCollection[domain.Group](),
		StageMembers:          newMemCollection[domain.StageMember](),
		Devices:               newMemCollection[domain.Device](),
		Producers:             newMemCollection[domain.Producer](),
		OvTracks:              newMemCollection[domain.OvTrack](),
		RemoteProducers:       newMemCollection[domain.RemoteProducer](),
		RemoteOvTracks:        newMemCollection[domain.RemoteOvTrack](),
		CustomGroups:          newMemCollection[domain.CustomGroup](),
		CustomStageMembers:    newMemCollection[domain.CustomStageMember](),
		CustomRemoteProducers: newMemCollection[domain.CustomRemoteProducer](),
		CustomRemoteOvTracks:  newMemCollection[domain.CustomRemoteOvTrack](),
	}
}
