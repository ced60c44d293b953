package ingest

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"
)

// Limiter は同時に実行できる取り込み数を制限します。nil の場合は無制限です。
type Limiter struct {
	sem     *semaphore.Weighted
	maxWait time.Duration
}

// NewLimiter は Limiter を生成します。max が 0 以下なら nil を返します。
func NewLimiter(max int64, maxWait time.Duration) *Limiter {
	if max <= 0 {
		return nil
	}
	return &Limiter{sem: semaphore.NewWeighted(max), maxWait: maxWait}
}

// Acquire は実行枠を確保し、解放関数を返します。
// maxWait 以内に確保できない場合は ErrTooManyIngestions を返します。
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l == nil {
		return func() {}, nil
	}

	if l.maxWait <= 0 {
		if !l.sem.TryAcquire(1) {
			return nil, ErrTooManyIngestions
		}
		return func() { l.sem.Release(1) }, nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTooManyIngestions
		}
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}
