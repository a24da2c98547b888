package espeak

import (
	"testing"

	"github.com/Naqued/speechlink/pkg/provider/localtts"
	"github.com/Naqued/speechlink/pkg/types"
)

func TestBuildArgs_Defaults(t *testing.T) {
	args := buildArgs(localtts.Utterance{Text: "hello"})
	if len(args) != 1 || args[0] != "hello" {
		t.Errorf("args = %v, want [hello]", args)
	}
}

func TestBuildArgs_Full(t *testing.T) {
	args := buildArgs(localtts.Utterance{
		Text:     "bonjour",
		Language: "fr",
		Options:  types.SynthesisOptions{Speed: 2, Pitch: 1.5},
	})
	want := []string{"-v", "fr", "-s", "350", "-p", "75", "bonjour"}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestSpeedToWPM(t *testing.T) {
	tests := []struct {
		speed float64
		want  int
	}{
		{0, 175},
		{-1, 175},
		{1, 175},
		{0.5, 87},
		{2, 350},
	}
	for _, tt := range tests {
		if got := speedToWPM(types.SynthesisOptions{Speed: tt.speed}); got != tt.want {
			t.Errorf("speedToWPM(%v) = %d, want %d", tt.speed, got, tt.want)
		}
	}
}

func TestPitchToScale_Clamped(t *testing.T) {
	if got := pitchToScale(types.SynthesisOptions{Pitch: 10}); got != 99 {
		t.Errorf("pitchToScale(10) = %d, want 99", got)
	}
	if got := pitchToScale(types.SynthesisOptions{}); got != 50 {
		t.Errorf("pitchToScale(0) = %d, want 50", got)
	}
}
