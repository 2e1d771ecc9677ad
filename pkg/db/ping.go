package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var ErrUnavailable = errors.New("database_unavailable")

// Ping checks that the pool can hand out a live connection within timeout.
// database/sql discards broken connections and dials new ones, so a
// successful ping also covers reconnects after a server restart.
func Ping(ctx context.Context, conn *gorm.DB, timeout time.Duration) error {
	if conn == nil {
		return ErrUnavailable
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
