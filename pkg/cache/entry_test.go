package cache

import (
	"testing"
	"time"
)

func TestEntry_IsExpired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		expires time.Time
		want    bool
	}{
		{
			name:    "expired entry",
			expires: now.Add(-1 * time.Hour),
			want:    true,
		},
		{
			name:    "valid entry",
			expires: now.Add(1 * time.Hour),
			want:    false,
		},
		{
			name:    "expires exactly now",
			expires: now,
			want:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := &Entry{Expires: tt.expires}
			if got := entry.IsExpired(now); got != tt.want {
				t.Errorf("IsExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_TTL(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	entry := NewEntry([]byte(`[]`), now, 5*time.Minute)
	if got := entry.TTL(now); got != 5*time.Minute {
		t.Errorf("TTL() = %v, want 5m", got)
	}
	if got := entry.TTL(now.Add(10 * time.Minute)); got != 0 {
		t.Errorf("TTL() after expiry = %v, want 0", got)
	}
	if !entry.CachedAt.Equal(now) {
		t.Errorf("CachedAt = %v, want %v", entry.CachedAt, now)
	}
}

func TestEntry_Retention(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	grace := time.Hour

	tests := []struct {
		name  string
		entry *Entry
		want  time.Duration
	}{
		{
			name:  "positive entry keeps grace",
			entry: NewEntry([]byte(`{}`), now, 10*time.Minute),
			want:  10*time.Minute + grace,
		},
		{
			name:  "negative entry has no grace",
			entry: NewNegativeEntry("permanent", "bad request", now, 5*time.Minute),
			want:  5 * time.Minute,
		},
		{
			name:  "expired entry is not stored",
			entry: NewEntry([]byte(`{}`), now.Add(-time.Hour), 10*time.Minute),
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.retention(now, grace); got != tt.want {
				t.Errorf("retention() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEntry_Clone(t *testing.T) {
	entry := NewNegativeEntry("permanent", "boom", time.Now(), time.Minute)
	entry.Data = []byte(`{"a":1}`)

	cp := entry.clone()
	cp.Data[0] = 'x'
	cp.Negative.Message = "changed"

	if string(entry.Data) != `{"a":1}` {
		t.Errorf("clone shares Data: %s", entry.Data)
	}
	if entry.Negative.Message != "boom" {
		t.Errorf("clone shares Negative: %q", entry.Negative.Message)
	}
}
