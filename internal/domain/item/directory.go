package item

import "context"

// Directory is the read-only view of the item catalog used by the booking core.
type Directory interface {
	// FindByID returns the item or a NotFound error.
	FindByID(ctx context.Context, id int64) (*Item, error)
	// FindByIDForShare is FindByID plus a share lock on the item until the
	// surrounding transaction ends, so availability cannot flip under a
	// booking being created.
	FindByIDForShare(ctx context.Context, id int64) (*Item, error)
	// FindByIDs returns the items that exist among ids, keyed by id.
	FindByIDs(ctx context.Context, ids []int64) (map[int64]*Item, error)
}
