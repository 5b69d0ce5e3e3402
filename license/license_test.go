package license

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iwt-cmd/awx/analytics"
	"github.com/iwt-cmd/awx/clog"
	"github.com/iwt-cmd/awx/config"
)

func TestFacts(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    analytics.LicenseFacts
		wantErr bool
	}{
		{name: "empty", cfg: Config{}, want: analytics.LicenseFacts{LicenseType: DefaultType}},
		{
			name: "rfc3339",
			cfg:  Config{InstanceCount: 100, LicenseType: "enterprise", Expiry: "2030-01-01T00:00:00+08:00"},
			want: analytics.LicenseFacts{InstanceCount: 100, LicenseType: "enterprise",
				Expiry: time.Date(2029, 12, 31, 16, 0, 0, 0, time.UTC)},
		},
		{
			name: "date only",
			cfg:  Config{InstanceCount: 5, LicenseType: " basic ", Expiry: "2031-06-30"},
			want: analytics.LicenseFacts{InstanceCount: 5, LicenseType: "basic",
				Expiry: time.Date(2031, 6, 30, 0, 0, 0, 0, time.UTC)},
		},
		{name: "bad expiry", cfg: Config{Expiry: "next year"}, wantErr: true},
		{name: "negative count", cfg: Config{InstanceCount: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.Facts()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviderUpdate(t *testing.T) {
	p, err := New(&Config{InstanceCount: 10, LicenseType: "enterprise"})
	require.NoError(t, err)

	facts, err := p.LicenseFacts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), facts.InstanceCount)

	assert.Error(t, p.Update(&Config{Expiry: "bogus"}))
	facts, _ = p.LicenseFacts(context.Background())
	assert.Equal(t, int64(10), facts.InstanceCount, "invalid update keeps previous facts")

	_, err = New(&Config{InstanceCount: -3})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err = New(nil)
	require.NoError(t, err)
	facts, _ = p.LicenseFacts(context.Background())
	assert.Equal(t, DefaultType, facts.LicenseType)
}

// fakeLoader 只实现 Watch 与 UnmarshalKey
type fakeLoader struct {
	config.Loader

	mu      sync.Mutex
	current Config
	events  chan config.Event
}

func (f *fakeLoader) Watch(ctx context.Context, key string) (<-chan config.Event, error) {
	go func() {
		<-ctx.Done()
		close(f.events)
	}()
	return f.events, nil
}

func (f *fakeLoader) UnmarshalKey(key string, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	*(v.(*Config)) = f.current
	return nil
}

func (f *fakeLoader) change(cfg Config) {
	f.mu.Lock()
	f.current = cfg
	f.mu.Unlock()
	f.events <- config.Event{Key: ConfigKey, Source: "file", Timestamp: time.Now()}
}

func TestWatchReloads(t *testing.T) {
	var buf bytes.Buffer
	logger, err := clog.New(&clog.Config{Level: "info", Format: "json"}, clog.WithWriter(&buf))
	require.NoError(t, err)

	p, err := New(&Config{InstanceCount: 1}, WithLogger(logger))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loader := &fakeLoader{events: make(chan config.Event, 1)}
	require.NoError(t, p.Watch(ctx, loader))

	loader.change(Config{InstanceCount: 50, LicenseType: "enterprise"})
	assert.Eventually(t, func() bool {
		facts, _ := p.LicenseFacts(ctx)
		return facts.InstanceCount == 50
	}, time.Second, 5*time.Millisecond)

	loader.change(Config{InstanceCount: -1})
	loader.change(Config{InstanceCount: 60})
	assert.Eventually(t, func() bool {
		facts, _ := p.LicenseFacts(ctx)
		return facts.InstanceCount == 60
	}, time.Second, 5*time.Millisecond)
}
