// internal/domain/filter/change.go

package filter

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrUnknownKey is returned for a change naming no filter field
	ErrUnknownKey = errors.New("unknown filter key")
	// ErrInvalidValue is returned for a value the field cannot hold
	ErrInvalidValue = errors.New("invalid filter value")
)

// KeyClear is the pseudo-key of the clear-filters action
const KeyClear = "limpar"

// Set applies a single field change named by its query string key,
// going through the same transitions as the typed setters. An empty
// value clears optional fields.
func Set(s State, key, value string) (State, error) {
	value = strings.TrimSpace(value)

	switch key {
	case KeyYear:
		y, err := strconv.Atoi(value)
		if err != nil || !Year(y).Valid() {
			return s, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		return s.WithYear(Year(y)), nil
	case KeyOffice:
		o, ok := ParseOffice(value)
		if !ok {
			return s, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		return s.WithOffice(o), nil
	case KeyMunicipality:
		return s.WithMunicipality(value), nil
	case KeyNeighborhood:
		return s.WithNeighborhood(value), nil
	case KeyZone:
		return s.WithZone(value), nil
	case KeyParty:
		return s.WithParty(value), nil
	case KeyCandidate:
		if value == "" {
			return s.WithCandidate(0), nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return s, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		return s.WithCandidate(n), nil
	case KeyHeatmap, KeyMarkers:
		on, err := strconv.ParseBool(value)
		if err != nil {
			return s, fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		if key == KeyHeatmap {
			return s.WithHeatmap(on), nil
		}
		return s.WithMarkers(on), nil
	case KeyClear:
		return s.Cleared(), nil
	}
	return s, fmt.Errorf("%w: %q", ErrUnknownKey, key)
}
