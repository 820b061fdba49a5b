package imagesync

import (
	"context"

	"github.com/ManuelReschke/productimages/internal/pkg/keylock"
)

// SyncLocker serialises syncs of the same variant directory.
type SyncLocker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type localLocker struct {
	locks *keylock.Locker
}

// NewLocalLocker returns a locker that only covers this process.
func NewLocalLocker() SyncLocker {
	return &localLocker{locks: keylock.New()}
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.locks.Lock("sync:" + key), nil
}
