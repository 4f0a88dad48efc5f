package match

import (
	"testing"
	"time"

	"github.com/ikimina/momoledger/internal/models"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0788123456", "250788123456"},
		{"+250788123456", "250788123456"},
		{"250788123456", "250788123456"},
		{"+250 788-123-456", "250788123456"},
		{"078 812 3456", "250788123456"},
		{"", ""},
		{"abc", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizePhone(tt.in); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPhoneHash(t *testing.T) {
	h1 := PhoneHash("0788123456")
	h2 := PhoneHash("+250788123456")
	if h1 == "" {
		t.Fatal("expected non-empty hash")
	}
	if h1 != h2 {
		t.Errorf("equivalent numbers should hash identically: %s vs %s", h1, h2)
	}
	if PhoneHash("") != "" {
		t.Error("empty phone should hash to empty string")
	}
}

func TestSignature(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	t.Run("reference wins over fuzzy signals", func(t *testing.T) {
		key, matchType := Signature("abc 123", 5000, "0788123456", now, DefaultWindow)
		if key != "ref:ABC123" {
			t.Errorf("key = %q, want ref:ABC123", key)
		}
		if matchType != models.MatchExact {
			t.Errorf("matchType = %q, want %q", matchType, models.MatchExact)
		}
	})

	t.Run("same reference different case collides", func(t *testing.T) {
		k1, _ := Signature("ABC123", 5000, "", now, DefaultWindow)
		k2, _ := Signature("abc123", 9999, "0788000000", now.Add(48*time.Hour), DefaultWindow)
		if k1 != k2 {
			t.Errorf("expected identical keys, got %q and %q", k1, k2)
		}
	})

	t.Run("fuzzy key without reference", func(t *testing.T) {
		key, matchType := Signature("", 5000, "0788123456", now, DefaultWindow)
		if matchType != models.MatchFuzzy {
			t.Errorf("matchType = %q, want %q", matchType, models.MatchFuzzy)
		}
		sameBucket, _ := Signature("", 5000, "+250788123456", now.Add(2*time.Hour), DefaultWindow)
		if key != sameBucket {
			t.Errorf("same amount/phone/bucket should collide: %q vs %q", key, sameBucket)
		}
	})

	t.Run("fuzzy key separates different amounts", func(t *testing.T) {
		k1, _ := Signature("", 5000, "0788123456", now, DefaultWindow)
		k2, _ := Signature("", 6000, "0788123456", now, DefaultWindow)
		if k1 == k2 {
			t.Error("different amounts must not collide")
		}
	})

	t.Run("fuzzy key separates different buckets", func(t *testing.T) {
		k1, _ := Signature("", 5000, "0788123456", now, DefaultWindow)
		k2, _ := Signature("", 5000, "0788123456", now.Add(72*time.Hour), DefaultWindow)
		if k1 == k2 {
			t.Error("different time buckets must not collide")
		}
	})
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Jean Mukamana", "Jean Mukamana", 1, 1},
		{"case and spacing ignored", "jean  MUKAMANA", "Jean Mukamana", 1, 1},
		{"close names score high", "Jean Mukamana", "Jean Mukamanna", 0.8, 1},
		{"unrelated names score low", "Jean Mukamana", "Bosco Habimana", 0, 0.5},
		{"empty side scores zero", "", "Jean", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NameSimilarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("NameSimilarity(%q, %q) = %f, want in [%f, %f]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}
