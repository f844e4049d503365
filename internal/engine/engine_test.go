package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeSwapper struct{}

func (fakeSwapper) Swap(ctx context.Context, source, target []byte) ([]byte, error) {
	return target, nil
}

func TestProvider_BuildsOnce(t *testing.T) {
	var builds int32
	p := NewProvider(Config{})
	p.build = func(Config) (*Engines, error) {
		atomic.AddInt32(&builds, 1)
		return &Engines{Swapper: fakeSwapper{}}, nil
	}

	ctx := context.Background()
	first, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	second, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}

	if first != second {
		t.Error("expected the same engines instance on every call")
	}
	if n := atomic.LoadInt32(&builds); n != 1 {
		t.Errorf("expected exactly one build, got %d", n)
	}
}

func TestProvider_ConcurrentFirstCallers(t *testing.T) {
	var builds int32
	p := NewProvider(Config{})
	p.build = func(Config) (*Engines, error) {
		atomic.AddInt32(&builds, 1)
		return &Engines{Swapper: fakeSwapper{}}, nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]*Engines, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := p.Get(context.Background())
			if err != nil {
				t.Errorf("caller %d: %v", i, err)
				return
			}
			results[i] = e
		}(i)
	}
	wg.Wait()

	if n := atomic.LoadInt32(&builds); n != 1 {
		t.Fatalf("expected exactly one build under race, got %d", n)
	}
	for i := 1; i < callers; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d observed a different engines instance", i)
		}
	}
}

func TestProvider_RetriesAfterBuildError(t *testing.T) {
	var builds int32
	buildErr := errors.New("model file missing")
	p := NewProvider(Config{})
	p.build = func(Config) (*Engines, error) {
		if atomic.AddInt32(&builds, 1) == 1 {
			return nil, buildErr
		}
		return &Engines{Swapper: fakeSwapper{}}, nil
	}

	ctx := context.Background()
	if _, err := p.Get(ctx); !errors.Is(err, buildErr) {
		t.Fatalf("expected build error on first call, got %v", err)
	}

	engines, err := p.Get(ctx)
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if engines == nil || engines.Swapper == nil {
		t.Error("expected usable engines after retry")
	}
}

func TestProvider_CanceledContext(t *testing.T) {
	p := NewProvider(Config{})
	p.build = func(Config) (*Engines, error) {
		t.Fatal("build must not run with a canceled context")
		return nil, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)
	if v[0] != 0.6 || v[1] != 0.8 {
		t.Errorf("expected unit vector (0.6, 0.8), got (%v, %v)", v[0], v[1])
	}

	zero := []float32{0, 0}
	normalize(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("zero vector must stay zero")
	}
}

func TestClampByte(t *testing.T) {
	if clampByte(-0.5) != 0 {
		t.Error("negative values clamp to 0")
	}
	if clampByte(2.0) != 255 {
		t.Error("values above 1 clamp to 255")
	}
	if clampByte(0.5) != 127 {
		t.Errorf("expected 127, got %d", clampByte(0.5))
	}
}
