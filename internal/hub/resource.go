package hub

import (
	"context"
	"encoding/json"

	"github.com/archos-hq/archos/pkg/resource"
)

// Resource is the type-erased view the gateway serves: one CRUD surface per
// table with JSON payloads in and snapshot slices out.
type Resource interface {
	Name() string

	// List returns the current snapshot, loading it first if the collection
	// has never loaded successfully.
	List(ctx context.Context) (any, error)

	// Create decodes a JSON body into the entity type and persists it
	// through the collection's defaults and validation.
	Create(ctx context.Context, body []byte) (any, error)

	// Update applies a partial patch and returns the server row.
	Update(ctx context.Context, id string, patch resource.Patch) (any, error)

	// Remove deletes by ID.
	Remove(ctx context.Context, id string) error

	// Reload forces a full refetch.
	Reload(ctx context.Context) error

	// Loaded reports whether a load has ever succeeded.
	Loaded() bool

	// LastError returns the most recent load failure, if any.
	LastError() error
}

// watcher is the lifecycle half the hub drives itself.
type watcher interface {
	watch(ctx context.Context) error
	close()
}

// view adapts one typed collection to [Resource].
type view[T resource.Entity] struct {
	c *resource.Collection[T]
}

func (v view[T]) Name() string { return v.c.Name() }

func (v view[T]) List(ctx context.Context) (any, error) {
	if !v.c.Loaded() {
		rows, err := v.c.Load(ctx)
		if err != nil {
			return nil, err
		}
		return rows, nil
	}
	return v.c.Snapshot(), nil
}

func (v view[T]) Create(ctx context.Context, body []byte) (any, error) {
	var row T
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, &resource.ValidationError{Table: v.c.Name(), Reason: "malformed body", Err: err}
	}
	return v.c.Create(ctx, row)
}

func (v view[T]) Update(ctx context.Context, id string, patch resource.Patch) (any, error) {
	return v.c.Update(ctx, id, patch)
}

func (v view[T]) Remove(ctx context.Context, id string) error {
	return v.c.Remove(ctx, id)
}

func (v view[T]) Reload(ctx context.Context) error {
	_, err := v.c.Load(ctx)
	return err
}

func (v view[T]) Loaded() bool     { return v.c.Loaded() }
func (v view[T]) LastError() error { return v.c.LastError() }

func (v view[T]) watch(ctx context.Context) error { return v.c.Watch(ctx) }
func (v view[T]) close()                          { v.c.Close() }
