package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/ovstage/stagehub/internal/domain"
)

// valkeyCollection persists one JSON document per key under
// "<prefix>:<id>" and keeps the id set under "<prefix>" as the collection
// index. Filtering happens client-side after fetching the collection.
type valkeyCollection[T Entity] struct {
	client valkey.Client
	prefix string
}

func newValkeyCollection[T Entity](client valkey.Client, name string) *valkeyCollection[T] {
	return &valkeyCollection[T]{client: client, prefix: "stagehub:" + name}
}

func (c *valkeyCollection[T]) docKey(id string) string { return c.prefix + ":" + id }

func (c *valkeyCollection[T]) Create(ctx context.Context, doc T) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("store: marshal %s: %w", c.prefix, err)
	}
	resp := c.client.Do(ctx, c.client.B().Set().Key(c.docKey(doc.Key())).Value(string(b)).Nx().Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: create %s: %w", c.prefix, err)
	}
	if err := c.client.Do(ctx, c.client.B().Sadd().Key(c.prefix).Member(doc.Key()).Build()).Error(); err != nil {
		return fmt.Errorf("store: index %s: %w", c.prefix, err)
	}
	return nil
}

func (c *valkeyCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	b, err := c.client.Do(ctx, c.client.B().Get().Key(c.docKey(id)).Build()).AsBytes()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("store: get %s: %w", c.prefix, err)
	}
	var doc T
	if err := json.Unmarshal(b, &doc); err != nil {
		return zero, fmt.Errorf("store: unmarshal %s: %w", c.prefix, err)
	}
	return doc, nil
}

func (c *valkeyCollection[T]) all(ctx context.Context) ([]T, error) {
	ids, err := c.client.Do(ctx, c.client.B().Smembers().Key(c.prefix).Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("store: list %s: %w", c.prefix, err)
	}
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		doc, err := c.Get(ctx, id)
		if err != nil {
			// Index may lag a concurrent delete.
			if err == ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *valkeyCollection[T]) FindOne(ctx context.Context, match func(T) bool) (T, error) {
	docs, err := c.all(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	for _, doc := range docs {
		if match(doc) {
			return doc, nil
		}
	}
	var zero T
	return zero, ErrNotFound
}

func (c *valkeyCollection[T]) Find(ctx context.Context, match func(T) bool) ([]T, error) {
	docs, err := c.all(ctx)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, doc := range docs {
		if match(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (c *valkeyCollection[T]) Update(ctx context.Context, id string, mutate func(*T)) (T, error) {
	var zero T
	doc, err := c.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	mutate(&doc)
	b, err := json.Marshal(doc)
	if err != nil {
		return zero, fmt.Errorf("store: marshal %s: %w", c.prefix, err)
	}
	if err := c.client.Do(ctx, c.client.B().Set().Key(c.docKey(id)).Value(string(b)).Build()).Error(); err != nil {
		return zero, fmt.Errorf("store: update %s: %w", c.prefix, err)
	}
	return doc, nil
}

func (c *valkeyCollection[T]) Delete(ctx context.Context, id string) (T, error) {
	doc, err := c.Get(ctx, id)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := c.client.Do(ctx, c.client.B().Del().Key(c.docKey(id)).Build()).Error(); err != nil {
		var zero T
		return zero, fmt.Errorf("store: delete %s: %w", c.prefix, err)
	}
	if err := c.client.Do(ctx, c.client.B().Srem().Key(c.prefix).Member(id).Build()).Error(); err != nil {
		var zero T
		return zero, fmt.Errorf("store: unindex %s: %w", c.prefix, err)
	}
	return doc, nil
}

// NewValkey builds a Store backed by a valkey server.
func NewValkey(client valkey.Client) *Store {
	return &Store{
		Users:                 newValkeyCollection[domain.User](client, "users"),
		Stages:                newValkeyCollection[domain.Stage](client, "stages"),
		Groups:                newValkeyCollection[domain.Group](client, "groups"),
		StageMembers:          newValkeyCollection[domain.StageMember](client, "stage-members"),
		Devices:               newValkeyCollection[domain.Device](client, "devices"),
		Producers:             newValkeyCollection[domain.Producer](client, "producers"),
		OvTracks:              newValkeyCollection[domain.OvTrack](client, "ov-tracks"),
		RemoteProducers:       newValkeyCollection[domain.RemoteProducer](client, "remote-producers"),
		RemoteOvTracks:        newValkeyCollection[domain.RemoteOvTrack](client, "remote-ov-tracks"),
		CustomGroups:          newValkeyCollection[domain.CustomGroup](client, "custom-groups"),
		CustomStageMembers:    newValkeyCollection[domain.CustomStageMember](client, "custom-stage-members"),
		CustomRemoteProducers: newValkeyCollection[domain.CustomRemoteProducer](client, "custom-remote-producers"),
		CustomRemoteOvTracks:  newValkeyCollection[domain.CustomRemoteOvTrack](client, "custom-remote-ov-tracks"),
	}
}
