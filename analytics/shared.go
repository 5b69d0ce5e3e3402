package analytics

import (
	"context"
	"sync"
)

type sharedReadsKey struct{}

// sharedReads 同一次采集内按 key 只执行一次的读取。
// 容量、已用、剩余三个指标由此共享同一行数据，避免撕裂读。
type sharedReads struct {
	mu    sync.Mutex
	reads map[string]func() (any, error)
}

func withSharedReads(ctx context.Context) context.Context {
	return context.WithValue(ctx, sharedReadsKey{}, &sharedReads{reads: make(map[string]func() (any, error))})
}

// shared 在当前采集内对 key 只调用一次 read，后续调用得到相同结果（包括错误）。
// ctx 不属于某次采集时直接调用 read。
func shared[T any](ctx context.Context, key string, read func(context.Context) (T, error)) (T, error) {
	s, _ := ctx.Value(sharedReadsKey{}).(*sharedReads)
	if s == nil {
		return read(ctx)
	}

	s.mu.Lock()
	fn, ok := s.reads[key]
	if !ok {
		fn = sync.OnceValues(func() (any, error) {
			return read(ctx)
		})
		s.reads[key] = fn
	}
	s.mu.Unlock()

	v, err := fn()
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
