package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/codec"
	"github.com/unkn0wn-root/snapcache/internal/util"
)

// InventoryItems is a user's saved listings as returned by the inventory
// source (not this API; the caller supplies the fetcher).
type InventoryItems []map[string]any

const DefaultMaxEntryBytes = 8 << 20

type CachedOptions struct {
	Store *snapcache.Store // required; shared by all three caches

	Codec    string // "json" (default), "cbor", "msgpack" or "protobuf"
	TTLs     map[snapcache.Category]time.Duration
	Coalesce bool

	// MaxEntryBytes bounds an encoded value; larger stored entries are
	// treated as corrupt. 0 => DefaultMaxEntryBytes, <0 => unlimited.
	MaxEntryBytes int

	RevalidateTimeout time.Duration
	OnRevalidateError func(cat snapcache.Category, id string, err error)

	Disabled bool
}

// Cached puts the cache strategies in front of a Client: vision and listing
// results are cache-first keyed by a hash of their input, inventory is
// stale-while-revalidate keyed by user id.
type Cached struct {
	api       *Client
	vision    snapcache.Manager[VisionResult]
	listings  snapcache.Manager[Listings]
	inventory snapcache.Manager[InventoryItems]
}

func NewCached(api *Client, opts CachedOptions) (*Cached, error) {
	if api == nil {
		return nil, errors.New("client: nil Client")
	}
	vision, err := newManager[VisionResult](opts)
	if err != nil {
		return nil, err
	}
	listings, err := newManager[Listings](opts)
	if err != nil {
		return nil, err
	}
	inventory, err := newManager[InventoryItems](opts)
	if err != nil {
		return nil, err
	}
	return &Cached{api: api, vision: vision, listings: listings, inventory: inventory}, nil
}

func newManager[V any](opts CachedOptions) (snapcache.Manager[V], error) {
	cd, err := codec.ForName[V](opts.Codec)
	if err != nil {
		return nil, err
	}
	if opts.MaxEntryBytes == 0 {
		opts.MaxEntryBytes = DefaultMaxEntryBytes
	}
	return snapcache.New(snapcache.Options[V]{
		Store:             opts.Store,
		Codec:             codec.WithMaxSize(cd, opts.MaxEntryBytes),
		TTLs:              opts.TTLs,
		Coalesce:          opts.Coalesce,
		RevalidateTimeout: opts.RevalidateTimeout,
		OnRevalidateError: opts.OnRevalidateError,
		Disabled:          opts.Disabled,
	})
}

// Vision analyzes images, reusing a fresh result for the same images.
func (c *Cached) Vision(ctx context.Context, images []string, opts ...snapcache.CallOption) (VisionResult, error) {
	id, err := HashObject(images)
	if err != nil {
		return nil, err
	}
	return c.vision.CacheFirst(ctx, snapcache.VisionData, id, func(ctx context.Context) (VisionResult, error) {
		return c.api.AnalyzeImages(ctx, images)
	}, opts...)
}

// Listings generates listings, reusing a fresh result for the same vision record.
func (c *Cached) Listings(ctx context.Context, vision VisionResult, opts ...snapcache.CallOption) (Listings, error) {
	id, err := HashObject(vision)
	if err != nil {
		return nil, err
	}
	return c.listings.CacheFirst(ctx, snapcache.ListingData, id, func(ctx context.Context) (Listings, error) {
		return c.api.GenerateListings(ctx, vision)
	}, opts...)
}

// Inventory serves the cached inventory at once and refreshes it in the
// background; only a miss waits for fetch.
func (c *Cached) Inventory(ctx context.Context, userID string, fetch snapcache.Fetcher[InventoryItems], opts ...snapcache.CallOption) (InventoryItems, error) {
	return c.inventory.StaleWhileRevalidate(ctx, snapcache.Inventory, userID, fetch, opts...)
}

// InvalidateVision drops the cached analysis for images.
func (c *Cached) InvalidateVision(ctx context.Context, images []string) error {
	id, err := HashObject(images)
	if err != nil {
		return err
	}
	return c.vision.Invalidate(ctx, snapcache.VisionData, id)
}

func (c *Cached) InvalidateInventory(ctx context.Context, userID string) error {
	return c.inventory.Invalidate(ctx, snapcache.Inventory, userID)
}

// PreloadInventory seeds the inventory cache, e.g. right after a save.
func (c *Cached) PreloadInventory(ctx context.Context, userID string, items InventoryItems) error {
	return c.inventory.Preload(ctx, snapcache.Inventory, userID, items)
}

// ClearAll removes every cached entry under the store's prefix.
func (c *Cached) ClearAll(ctx context.Context) error {
	return c.vision.ClearAll(ctx)
}

// Close drains background refreshes. The Store stays open.
func (c *Cached) Close(ctx context.Context) error {
	return errors.Join(
		c.vision.Close(ctx),
		c.listings.Close(ctx),
		c.inventory.Close(ctx),
	)
}

// HashObject returns a short stable hash of v's JSON encoding. Map keys are
// sorted by encoding/json, so equal records hash equally.
func HashObject(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("client: hash: %w", err)
	}
	return util.ShortHash(b, 16), nil
}
