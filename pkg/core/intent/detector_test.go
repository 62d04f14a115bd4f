package intent

import (
	"testing"
)

func TestDetect_BuiltinCommands(t *testing.T) {
	d := NewDetector()

	cases := []struct {
		text string
		want Type
	}{
		{"pause", Pause},
		{"hold on a sec", Pause},
		{"Wait", Pause},
		{"resume", Resume},
		{"okay keep going", Resume},
		{"skip", Skip},
		{"let's move on", Skip},
		{"skip this topic please", Skip},
		{"next topic", Skip},
		{"next", Next},
		{"next email", Next},
		{"move to next", Next},
		{"go back", GoBack},
		{"the previous one", GoBack},
		{"tell me more", GoDeeper},
		{"can you go deeper", GoDeeper},
		{"say that again", Repeat},
		{"repeat", Repeat},
		{"stop", Stop},
		{"stop the briefing", Stop},
		{"that's enough", Stop},
	}

	for _, tc := range cases {
		got := d.Detect(tc.text)
		if got.Type != tc.want {
			t.Errorf("Detect(%q): expected %s, got %s (phrase %q)",
				tc.text, tc.want, got.Type, got.MatchedPhrase)
		}
		if got.Confidence < 0.7 {
			t.Errorf("Detect(%q): expected confidence >= 0.7, got %.2f", tc.text, got.Confidence)
		}
	}
}

func TestDetect_NextTopicBeatsNext(t *testing.T) {
	d := NewDetector()

	if got := d.Detect("next topic"); got.Type != Skip {
		t.Errorf("Expected 'next topic' to resolve to SKIP, got %s", got.Type)
	}
	if got := d.Detect("next email"); got.Type != Next {
		t.Errorf("Expected 'next email' to resolve to NEXT, got %s", got.Type)
	}
}

func TestDetect_CaseInsensitive(t *testing.T) {
	d := NewDetector()

	if got := d.Detect("PAUSE"); got.Type != Pause {
		t.Errorf("Expected PAUSE for upper-case input, got %s", got.Type)
	}
	if got := d.Detect("Skip This Topic"); got.Type != Skip {
		t.Errorf("Expected SKIP for mixed-case input, got %s", got.Type)
	}
}

func TestDetect_WordBoundaries(t *testing.T) {
	d := NewDetector()

	// "next" inside another word must not trigger NEXT.
	if got := d.Detect("that has some context"); got.Type != Unknown {
		t.Errorf("Expected UNKNOWN for embedded match, got %s (%q)", got.Type, got.MatchedPhrase)
	}
	if got := d.Detect("unstoppable"); got.Type != Unknown {
		t.Errorf("Expected UNKNOWN for embedded 'stop', got %s", got.Type)
	}
}

func TestDetect_NoMatch(t *testing.T) {
	d := NewDetector()

	for _, text := range []string{"", "   ", "the weather is nice today", "mm hmm"} {
		got := d.Detect(text)
		if got.Type != Unknown {
			t.Errorf("Detect(%q): expected UNKNOWN, got %s", text, got.Type)
		}
		if got.Confidence != 0 {
			t.Errorf("Detect(%q): expected confidence 0, got %.2f", text, got.Confidence)
		}
	}
}

func TestAddPattern(t *testing.T) {
	d := NewDetector()

	if got := d.Detect("fast forward"); got.Type != Unknown {
		t.Fatalf("Expected no match before registration, got %s", got.Type)
	}

	d.AddPattern(Pattern{Type: Skip, Phrases: []string{"Fast Forward"}, Confidence: 0.8})

	got := d.Detect("please fast forward")
	if got.Type != Skip {
		t.Errorf("Expected custom pattern to match, got %s", got.Type)
	}
	if got.Confidence != 0.8 {
		t.Errorf("Expected custom confidence 0.8, got %.2f", got.Confidence)
	}
}

func TestCustomPatternsAppendAfterBuiltins(t *testing.T) {
	d := NewDetector(Pattern{Type: Stop, Phrases: []string{"pause"}, Confidence: 0.99})

	// The built-in PAUSE entry has priority over a later custom entry.
	if got := d.Detect("pause"); got.Type != Pause {
		t.Errorf("Expected built-in to win on priority, got %s", got.Type)
	}
}

func TestPatterns_ReturnsCopy(t *testing.T) {
	d := NewDetector()

	patterns := d.Patterns()
	if len(patterns) == 0 {
		t.Fatal("Expected seeded pattern table")
	}
	patterns[0] = Pattern{Type: Unknown}

	if got := d.Detect("pause"); got.Type != Pause {
		t.Error("Expected mutating the returned slice to leave the detector untouched")
	}
}
