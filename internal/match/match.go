// Package match derives the signatures used to cluster potential duplicate
// transactions and the phone/name normalization shared with the member
// directory index.
package match

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/ikimina/momoledger/internal/models"
)

// DefaultWindow is the time bucket width for fuzzy signatures.
const DefaultWindow = 24 * time.Hour

// NormalizePhone canonicalizes a phone number to international digits without
// a leading plus: "+250 788-123-456", "0788123456" and "250788123456" all
// normalize to "250788123456". Numbers that keep a leading zero after
// stripping are assumed to be local Rwandan numbers.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if strings.HasPrefix(digits, "0") {
		digits = "250" + digits[1:]
	}
	return digits
}

// PhoneHash returns the hex SHA-256 of the normalized phone. The member
// directory indexes members by the same hash, so suggestion lookups never
// compare raw numbers. Empty input hashes to the empty string.
func PhoneHash(phone string) string {
	normalized := NormalizePhone(phone)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Signature computes the duplicate-detection key for a transaction and the
// match type that produced it. Transactions with a provider reference use the
// normalized reference alone (exact). Without one, the key combines amount,
// normalized payer phone and the time bucket of the window (fuzzy).
//
// The key is stable for a given transaction, so it is computed once at ingest
// and stored on the row; grouping is then a plain query.
func Signature(momoRef string, amountMinor int64, payerPhone string, occurredAt time.Time, window time.Duration) (key, matchType string) {
	if ref := NormalizeRef(momoRef); ref != "" {
		return "ref:" + ref, models.MatchExact
	}
	if window <= 0 {
		window = DefaultWindow
	}
	bucket := occurredAt.UTC().Truncate(window).Unix()
	return fmt.Sprintf("fuzzy:%d:%s:%d", amountMinor, NormalizePhone(payerPhone), bucket), models.MatchFuzzy
}

// NormalizeRef canonicalizes a provider reference: trimmed, uppercased,
// internal whitespace removed.
func NormalizeRef(ref string) string {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	return strings.Join(strings.Fields(ref), "")
}

// NameSimilarity scores how alike two person names are in [0,1] using
// normalized Levenshtein distance, case- and whitespace-insensitive.
// Returns 0 when either name is empty.
func NameSimilarity(a, b string) float64 {
	a = normalizeName(a)
	b = normalizeName(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	score := 1 - float64(dist)/float64(maxLen)
	if score < 0 {
		return 0
	}
	return score
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}
