package snapcache

import (
	"strings"
	"time"
)

// DefaultPrefix namespaces every key the cache writes.
const DefaultPrefix = "@snap"

// Category groups cached results that share a TTL.
type Category string

const (
	VisionData  Category = "visionData"
	ListingData Category = "listingData"
	Inventory   Category = "inventory"
	UserProfile Category = "userProfile"
)

// DefaultTTLs returns a fresh copy of the built-in TTL table.
func DefaultTTLs() map[Category]time.Duration {
	return map[Category]time.Duration{
		VisionData:  30 * time.Minute,
		ListingData: 60 * time.Minute,
		Inventory:   5 * time.Minute,
		UserProfile: 24 * time.Hour,
	}
}

// Validate rejects empty categories and categories containing ':', which
// would make keys of different categories collide.
func (c Category) Validate() error {
	if c == "" || strings.Contains(string(c), ":") {
		return ErrBadCategory
	}
	return nil
}

// Key builds "<prefix>:<category>:<id>".
func Key(prefix string, c Category, id string) string {
	return prefix + ":" + string(c) + ":" + id
}
