package catalog

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/eugenenazirov/budget-allocator/internal/allocator"
)

func TestNewMemoryStorageReturnsDefaultChannels(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()

	got, err := store.GetChannels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(DefaultChannels(), got); diff != "" {
		t.Fatalf("default channels mismatch (-want +got):\n%s", diff)
	}

	// ensure mutation safety
	got[0].Name = "Radio"
	again, err := store.GetChannels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again[0].Name != "TV" {
		t.Fatalf("expected defensive copy, got %v", again)
	}
}

func TestSetChannelsPreservesOrderAndTrimsNames(t *testing.T) {
	t.Parallel()

	store := NewMemoryStorage()
	input := []Channel{
		{Name: " Radio ", Coefficient: 0.01, Lower: 0, Upper: 100},
		{Name: "Print", Coefficient: 0.02, Lower: 10, Upper: 10},
	}
	if err := store.SetChannels(input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetChannels()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Channel{
		{Name: "Radio", Coefficient: 0.01, Lower: 0, Upper: 100},
		{Name: "Print", Coefficient: 0.02, Lower: 10, Upper: 10},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("channels mismatch (-want +got):\n%s", diff)
	}
}

func TestSetChannelsRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tooMany := make([]Channel, maxChannels+1)
	for i := range tooMany {
		tooMany[i] = Channel{Name: fmt.Sprintf("c%d", i), Upper: 1}
	}

	testCases := [][]Channel{
		nil,
		{},
		tooMany,
		{{Name: "", Upper: 1}},
		{{Name: "A", Upper: 1}, {Name: "A", Upper: 2}},
		{{Name: "A", Lower: 5, Upper: 1}},
		{{Name: "A", Lower: -1, Upper: 1}},
		{{Name: "A", Coefficient: math.NaN(), Upper: 1}},
		{{Name: "A", Upper: math.Inf(1)}},
	}

	for idx, tc := range testCases {
		tc := tc
		t.Run(fmt.Sprintf("case_%d", idx), func(t *testing.T) {
			store := NewMemoryStorage()
			if err := store.SetChannels(tc); !errors.Is(err, ErrInvalidChannels) {
				t.Fatalf("expected ErrInvalidChannels for %v, got %v", tc, err)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	names, coeffs, bounds := Split(DefaultChannels())

	if diff := cmp.Diff([]string{"TV", "Search", "Social", "Email"}, names); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.028, 0.081, 0.052, 0.095}, coeffs); diff != "" {
		t.Fatalf("coefficients mismatch (-want +got):\n%s", diff)
	}
	if got, want := bounds[3], (allocator.Bound{Lower: 500, Upper: 5000}); got != want {
		t.Fatalf("expected bound %v, got %v", want, got)
	}
}

func TestMemoryStorageConcurrentAccess(t *testing.T) {
	store := NewMemoryStorage()
	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(2)

		go func(offset int) {
			defer wg.Done()
			channels := []Channel{{Name: "TV", Coefficient: 0.01, Upper: float64(100 + offset)}}
			if err := store.SetChannels(channels); err != nil {
				t.Errorf("SetChannels failed: %v", err)
			}
		}(i)

		go func() {
			defer wg.Done()
			if _, err := store.GetChannels(); err != nil {
				t.Errorf("GetChannels failed: %v", err)
			}
		}()
	}

	wg.Wait()

	if _, err := store.GetChannels(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
