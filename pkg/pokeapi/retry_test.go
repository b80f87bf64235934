package pokeapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var (
	errUnavailable = &APIError{StatusCode: 503, Class: ErrorClassServer}
	errBadGateway  = &APIError{StatusCode: 502, Class: ErrorClassServer}
	errThrottled   = &APIError{StatusCode: 429, Class: ErrorClassRateLimit}
	errMissing     = &APIError{StatusCode: 404, Class: ErrorClassNotFound}
	errRejected    = &APIError{StatusCode: 400, Class: ErrorClassClient}
	errGarbled     = &APIError{StatusCode: 200, Class: ErrorClassDecode}
)

// scripted returns fn answering with outcomes in order, repeating the last one,
// and a pointer to the number of calls made.
func scripted(outcomes ...error) (func() error, *int) {
	calls := 0
	return func() error {
		i := min(calls, len(outcomes)-1)
		calls++
		return outcomes[i]
	}, &calls
}

func millisecondRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, BackoffMultiplier: 2}
}

func TestDefaultRetryConfig(t *testing.T) {
	want := RetryConfig{MaxAttempts: 3, InitialBackoff: 500 * time.Millisecond, MaxBackoff: 10 * time.Second, BackoffMultiplier: 2}
	if got := DefaultRetryConfig(); got != want {
		t.Errorf("DefaultRetryConfig() = %+v, want %+v", got, want)
	}
}

func TestRetryConfig_ForErrorClass(t *testing.T) {
	base := DefaultRetryConfig()

	tests := []struct {
		class       ErrorClass
		initial     time.Duration
		maxInterval time.Duration
	}{
		{ErrorClassServer, 500 * time.Millisecond, 10 * time.Second},
		{ErrorClassRateLimit, 2 * time.Second, 30 * time.Second},
		{ErrorClassNetwork, time.Second, 10 * time.Second},
		{"", 500 * time.Millisecond, 10 * time.Second},
	}

	for _, tt := range tests {
		got := base.ForErrorClass(tt.class)
		if got.InitialBackoff != tt.initial || got.MaxBackoff != tt.maxInterval {
			t.Errorf("ForErrorClass(%q) delays = %v..%v, want %v..%v",
				tt.class, got.InitialBackoff, got.MaxBackoff, tt.initial, tt.maxInterval)
		}
		if got.MaxAttempts != base.MaxAttempts {
			t.Errorf("ForErrorClass(%q) changed MaxAttempts to %d", tt.class, got.MaxAttempts)
		}
	}

	zero := RetryConfig{}.ForErrorClass(ErrorClassServer)
	if zero.MaxAttempts != 1 || zero.BackoffMultiplier != 1 {
		t.Errorf("zero config clamped to %+v, want one attempt and multiplier 1", zero)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	tests := []struct {
		name      string
		outcomes  []error
		wantCalls int
		wantErr   []error
	}{
		{"first try succeeds", []error{nil}, 1, nil},
		{"recovers on third try", []error{errUnavailable, errBadGateway, nil}, 3, nil},
		{"recovers after throttling", []error{errThrottled, nil}, 2, nil},
		{"not found is final", []error{errMissing}, 1, []error{ErrNotFound}},
		{"client error is final", []error{errRejected}, 1, []error{ErrPermanent}},
		{"decode error is final", []error{errGarbled}, 1, []error{errGarbled}},
		{"permanent after a retry", []error{errBadGateway, errMissing}, 2, []error{ErrNotFound}},
		{"exhausted", []error{errUnavailable}, 3, []error{ErrRetryExhausted, ErrTransient}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, calls := scripted(tt.outcomes...)

			err := retryWithBackoff(context.Background(), millisecondRetry(), zerolog.Nop(), fn)

			if *calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", *calls, tt.wantCalls)
			}
			if len(tt.wantErr) == 0 && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			for _, target := range tt.wantErr {
				if !errors.Is(err, target) {
					t.Errorf("err = %v, want it to match %v", err, target)
				}
			}
		})
	}
}

func TestRetryWithBackoff_UnclassifiedError(t *testing.T) {
	boom := errors.New("boom")
	fn, calls := scripted(boom)

	if err := retryWithBackoff(context.Background(), millisecondRetry(), zerolog.Nop(), fn); err != boom {
		t.Errorf("err = %v, want the original error untouched", err)
	}
	if *calls != 1 {
		t.Errorf("calls = %d, want 1", *calls)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	cfg := millisecondRetry()
	cfg.InitialBackoff, cfg.MaxBackoff = time.Hour, time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	fn, calls := scripted(errUnavailable)
	done := make(chan error, 1)
	go func() { done <- retryWithBackoff(ctx, cfg, zerolog.Nop(), fn) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrContextCancelled) || !errors.Is(err, ErrTransient) {
			t.Errorf("err = %v, want cancelled wrapping the transient failure", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry kept sleeping after cancellation")
	}
	if *calls != 1 {
		t.Errorf("calls = %d, want 1", *calls)
	}
}

func TestSchedule_GrowsAndCaps(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, BackoffMultiplier: 2}
	sched := &schedule{next: cfg.InitialBackoff, cfg: cfg}

	for i, base := range []time.Duration{100, 200, 300, 300} {
		base *= time.Millisecond
		d := sched.delay()
		low, high := time.Duration(float64(base)*0.8), time.Duration(float64(base)*1.2)
		if d < low || d > high {
			t.Errorf("delay %d = %v, want within [%v, %v]", i, d, low, high)
		}
	}
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Hour) {
		t.Error("sleep on a done context should report an interrupted wait")
	}
	if !sleep(context.Background(), time.Millisecond) {
		t.Error("sleep should report a completed wait")
	}
}
