// Package lock serializes check-then-insert critical sections per resource.
package lock

import (
	"context"
	"sort"
)

// Locker acquires an exclusive hold on key until the returned release func
// is called. Lock blocks until the key is free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// LockAll acquires every key in sorted order so two callers contending on
// the same set cannot deadlock. Duplicate keys are acquired once.
func LockAll(ctx context.Context, l Locker, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	var releases []func()
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		release, err := l.Lock(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}
