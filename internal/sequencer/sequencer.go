// Package sequencer derives consecutive scene identifiers from a seed
// identifier, used to expand a single scene config into a batch of
// variations.
package sequencer

import (
	"fmt"
	"strconv"

	"sceneforge/internal/models"
)

// NextIDs returns count identifiers starting at seed. The first identifier is
// always the seed itself, so count=1 is a no-op.
//
// Seeds ending in a run of decimal digits are treated as a fixed-width
// counter: "scene_01" yields scene_01, scene_02, scene_03, preserving the
// zero padding (a counter that outgrows its width simply gets wider, the way
// strconv formats it). Seeds with no trailing digits keep the seed for i=0
// and append "_2", "_3", ... for the rest, so the names read as variants of
// the original.
func NextIDs(seed string, count int) ([]string, error) {
	if seed == "" {
		return nil, &models.ConfigError{Field: "scene_id", Message: "seed identifier is empty"}
	}
	if count < 1 {
		return nil, &models.ConfigError{Field: "count", Message: fmt.Sprintf("count must be >= 1, got %d", count)}
	}

	ids := make([]string, 0, count)

	prefix, start, width, numeric := splitTrailingDigits(seed)
	if numeric {
		for i := 0; i < count; i++ {
			ids = append(ids, prefix+pad(start+uint64(i), width))
		}
		return ids, nil
	}

	ids = append(ids, seed)
	for i := 1; i < count; i++ {
		ids = append(ids, fmt.Sprintf("%s_%d", seed, i+1))
	}
	return ids, nil
}

// splitTrailingDigits separates a trailing decimal run from the seed.
// Returns the prefix, the parsed counter, the digit-run width, and whether a
// run was found at all.
func splitTrailingDigits(seed string) (prefix string, start uint64, width int, ok bool) {
	i := len(seed)
	for i > 0 && seed[i-1] >= '0' && seed[i-1] <= '9' {
		i--
	}
	digits := seed[i:]
	if digits == "" {
		return "", 0, 0, false
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		// Digit run too long to fit a uint64; treat the seed as non-numeric.
		return "", 0, 0, false
	}
	return seed[:i], n, len(digits), true
}

func pad(n uint64, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}
