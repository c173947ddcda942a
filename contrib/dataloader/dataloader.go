// Package dataloader provides the generic helpers that regroup the rows
// of a batched query by key and align them with the requested keys.
//
// sqlgraph builds on them to hand every owner its targets, and they fit
// the batch function of any DataLoader implementation such as
// github.com/graph-gophers/dataloader/v7:
//
//	func userBatchFn(ctx context.Context, ids []int64) ([]*User, []error) {
//	    users, err := loadUsers(ctx, ids)
//	    if err != nil {
//	        return nil, []error{err}
//	    }
//	    return dataloader.OrderByKeys(ids, users, func(u *User) int64 { return u.ID })
//	}
package dataloader

import "errors"

// ErrNotFound is returned when an entity is not found in a batch result.
var ErrNotFound = errors.New("dataloader: entity not found")

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// OrderByKeys reorders entities to match the order of requested keys.
// Missing entities are represented as zero values with corresponding errors.
//
// The result slice has the same length as keys, with results in the same
// order, as DataLoader requires.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// GroupByKey groups entities by a key function, keeping their order.
// Useful for one-to-many relationships where multiple entities share the
// same foreign key.
//
//	grouped := GroupByKey(posts, func(p *Post) int64 { return p.UserID })
//	// grouped[userID] contains all posts of that user
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys reorders grouped entities to match the order of requested keys.
// Returns a slice of slices where each inner slice contains entities for that key.
// Repeated keys share their group.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}
