package repository

import (
	"context"
	"time"
)

// StateRepository 定义了 Redis 中的临时状态操作。
type StateRepository interface {
	// ReserveJoinCode 原子地占用一个加入码，已被占用时返回 false。
	ReserveJoinCode(ctx context.Context, code, roomID string) (bool, error)

	// BindJoinCode 把已占用的加入码指向创建成功的房间。
	BindJoinCode(ctx context.Context, code, roomID string) error

	ReleaseJoinCode(ctx context.Context, code string) error

	// CheckRateLimit 递增计数并返回是否超限。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
