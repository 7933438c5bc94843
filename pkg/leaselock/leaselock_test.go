package leaselock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLocalBusyWithoutWait(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	err := l.WithLease(ctx, "job", Options{}, func(ctx context.Context) error {
		inner := l.WithLease(ctx, "job", Options{}, func(context.Context) error { return nil })
		if !errors.Is(inner, ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ran := false
	if err := l.WithLease(ctx, "job", Options{}, func(context.Context) error { ran = true; return nil }); err != nil {
		t.Fatalf("lease not released: %v", err)
	}
	if !ran {
		t.Fatalf("fn did not run")
	}
}

func TestLocalIndependentKeys(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()
	err := l.WithLease(ctx, "a", Options{}, func(ctx context.Context) error {
		return l.WithLease(ctx, "b", Options{}, func(context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocalWaitHonorsContext(t *testing.T) {
	l := NewLocal()
	if !l.tryHold("job") {
		t.Fatalf("could not hold key")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.WithLease(ctx, "job", Options{Wait: true, WaitInterval: 10 * time.Millisecond}, func(context.Context) error {
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLocalEmptyKey(t *testing.T) {
	if err := NewLocal().WithLease(context.Background(), "", Options{}, nil); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{TTL: 10 * time.Second, RenewEvery: time.Minute}.withDefaults()
	if o.RenewEvery != 5*time.Second {
		t.Fatalf("renew every = %v", o.RenewEvery)
	}
	o = Options{}.withDefaults()
	if o.TTL != defaultTTL || o.WaitInterval != defaultWaitInterval {
		t.Fatalf("unexpected defaults: %+v", o)
	}
}
