package sequencer

import (
	"errors"
	"testing"

	"sceneforge/internal/models"
)

func TestNextIDsNumericSeeds(t *testing.T) {
	tests := []struct {
		name  string
		seed  string
		count int
		want  []string
	}{
		{
			name:  "zero padded",
			seed:  "scene_01",
			count: 3,
			want:  []string{"scene_01", "scene_02", "scene_03"},
		},
		{
			name:  "bare integer",
			seed:  "shot_5",
			count: 2,
			want:  []string{"shot_5", "shot_6"},
		},
		{
			name:  "count one returns seed",
			seed:  "scene_07",
			count: 1,
			want:  []string{"scene_07"},
		},
		{
			name:  "width preserved across rollover",
			seed:  "take_09",
			count: 3,
			want:  []string{"take_09", "take_10", "take_11"},
		},
		{
			name:  "wide padding",
			seed:  "ep0003",
			count: 2,
			want:  []string{"ep0003", "ep0004"},
		},
		{
			name:  "all digits",
			seed:  "042",
			count: 2,
			want:  []string{"042", "043"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextIDs(tt.seed, tt.count)
			if err != nil {
				t.Fatalf("NextIDs(%q, %d): %v", tt.seed, tt.count, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d ids, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("id[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNextIDsNonNumericSeed(t *testing.T) {
	got, err := NextIDs("intro", 3)
	if err != nil {
		t.Fatalf("NextIDs: %v", err)
	}
	want := []string{"intro", "intro_2", "intro_3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("id[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNextIDsCountOneIsSeed(t *testing.T) {
	for _, seed := range []string{"scene_01", "intro", "x9"} {
		got, err := NextIDs(seed, 1)
		if err != nil {
			t.Fatalf("NextIDs(%q, 1): %v", seed, err)
		}
		if len(got) != 1 || got[0] != seed {
			t.Errorf("NextIDs(%q, 1) = %v, want [%q]", seed, got, seed)
		}
	}
}

func TestNextIDsInvalidInput(t *testing.T) {
	var cfgErr *models.ConfigError

	if _, err := NextIDs("scene_01", 0); !errors.As(err, &cfgErr) {
		t.Errorf("count=0: expected ConfigError, got %v", err)
	}
	if _, err := NextIDs("scene_01", -2); !errors.As(err, &cfgErr) {
		t.Errorf("count=-2: expected ConfigError, got %v", err)
	}
	if _, err := NextIDs("", 1); !errors.As(err, &cfgErr) {
		t.Errorf("empty seed: expected ConfigError, got %v", err)
	}
}

func TestNextIDsOverlongDigitRun(t *testing.T) {
	// 25 digits cannot be parsed as a counter; seed falls back to the
	// non-numeric policy.
	seed := "scene_1111111111111111111111111"
	got, err := NextIDs(seed, 2)
	if err != nil {
		t.Fatalf("NextIDs: %v", err)
	}
	if got[0] != seed || got[1] != seed+"_2" {
		t.Errorf("got %v", got)
	}
}
