package catalog

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/eugenenazirov/budget-allocator/internal/allocator"
)

const maxChannels = 32

var (
	// ErrInvalidChannels indicates the provided channels violate validation rules.
	ErrInvalidChannels = errors.New("channels must contain between 1 and 32 uniquely named entries with finite coefficients and 0 <= lower <= upper")
)

// Channel is a named marketing channel with its marginal return and spend bounds.
type Channel struct {
	Name        string  `json:"name" yaml:"name"`
	Coefficient float64 `json:"coefficient" yaml:"coefficient"`
	Lower       float64 `json:"lower" yaml:"lower"`
	Upper       float64 `json:"upper" yaml:"upper"`
}

var defaultChannels = []Channel{
	{Name: "TV", Coefficient: 0.028, Lower: 5000, Upper: 20000},
	{Name: "Search", Coefficient: 0.081, Lower: 2000, Upper: 12000},
	{Name: "Social", Coefficient: 0.052, Lower: 1000, Upper: 10000},
	{Name: "Email", Coefficient: 0.095, Lower: 500, Upper: 5000},
}

// Storage provides access to the channel catalogue used by the allocator.
type Storage interface {
	GetChannels() ([]Channel, error)
	SetChannels(channels []Channel) error
}

// MemoryStorage keeps channels in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu       sync.RWMutex
	channels []Channel
}

// NewMemoryStorage initialises storage with a copy of the default channels.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		channels: clone(defaultChannels),
	}
}

// DefaultChannels returns a copy of the default channel catalogue.
func DefaultChannels() []Channel {
	return clone(defaultChannels)
}

// GetChannels returns a copy of the current catalogue in insertion order.
func (s *MemoryStorage) GetChannels() ([]Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return clone(s.channels), nil
}

// SetChannels validates and replaces the catalogue.
func (s *MemoryStorage) SetChannels(channels []Channel) error {
	normalized, err := Normalize(channels)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.channels = normalized
	s.mu.Unlock()

	return nil
}

// Normalize trims channel names and validates the set, returning a copy.
func Normalize(channels []Channel) ([]Channel, error) {
	if len(channels) == 0 || len(channels) > maxChannels {
		return nil, ErrInvalidChannels
	}

	seen := make(map[string]struct{}, len(channels))
	out := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		ch.Name = strings.TrimSpace(ch.Name)
		if ch.Name == "" {
			return nil, fmt.Errorf("%w: empty channel name", ErrInvalidChannels)
		}
		if _, dup := seen[ch.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate channel %q", ErrInvalidChannels, ch.Name)
		}
		if !finite(ch.Coefficient) || !finite(ch.Lower) || !finite(ch.Upper) {
			return nil, fmt.Errorf("%w: channel %q has non-finite values", ErrInvalidChannels, ch.Name)
		}
		if ch.Lower < 0 || ch.Lower > ch.Upper {
			return nil, fmt.Errorf("%w: channel %q has bounds [%g, %g]", ErrInvalidChannels, ch.Name, ch.Lower, ch.Upper)
		}
		seen[ch.Name] = struct{}{}
		out = append(out, ch)
	}
	return out, nil
}

// Split turns channels into the parallel slices the allocator consumes.
func Split(channels []Channel) (names []string, coeffs []float64, bounds []allocator.Bound) {
	names = make([]string, len(channels))
	coeffs = make([]float64, len(channels))
	bounds = make([]allocator.Bound, len(channels))
	for i, ch := range channels {
		names[i] = ch.Name
		coeffs[i] = ch.Coefficient
		bounds[i] = allocator.Bound{Lower: ch.Lower, Upper: ch.Upper}
	}
	return names, coeffs, bounds
}

func clone(src []Channel) []Channel {
	out := make([]Channel, len(src))
	copy(out, src)
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
