// Package store is the persistence abstraction: typed document collections
// with client-side filtering. Backends: in-memory (dev, tests) and valkey.
package store

import (
	"context"
	"errors"

	"github.com/ovstage/stagehub/internal/domain"
)

var (
	ErrNotFound  = errors.New("store: document not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// Entity is anything with a stable document key.
type Entity interface {
	Key() string
}

// Collection is generic CRUD over documents of one kind. Filters are plain
// predicates evaluated client-side; backends may fetch the whole collection
// to answer Find.
type Collection[T Entity] interface {
	Create(ctx context.Context, doc T) error
	Get(ctx context.Context, id string) (T, error)
	FindOne(ctx context.Context, match func(T) bool) (T, error)
	Find(ctx context.Context, match func(T) bool) ([]T, error)
	Update(ctx context.Context, id string, mutate func(*T)) (T, error)
	Delete(ctx context.Context, id string) (T, error)
}

// Store aggregates one collection per entity kind.
type Store struct {
	Users                 Collection[domain.User]
	Stages                Collection[domain.Stage]
	Groups                Collection[domain.Group]
	StageMembers          Collection[domain.StageMember]
	Devices               Collection[domain.Device]
	Producers             Collection[domain.Producer]
	OvTracks              Collection[domain.OvTrack]
	RemoteProducers       Collection[domain.RemoteProducer]
	RemoteOvTracks        Collection[domain.RemoteOvTrack]
	CustomGroups          Collection[domain.CustomGroup]
	CustomStageMembers    Collection[domain.CustomStageMember]
	CustomRemoteProducers Collection[domain.CustomRemoteProducer]
	CustomRemoteOvTracks  Collection[domain.CustomRemoteOvTrack]
}
