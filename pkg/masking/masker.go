package masking

import (
	"regexp"
	"strings"
)

// Masker is a code-based masker for data a regex alone cannot classify.
type Masker interface {
	// Name returns the unique identifier for this masker.
	Name() string

	// AppliesTo performs a lightweight check on whether this masker
	// should process the data.
	AppliesTo(data string) bool

	// Mask returns data with the sensitive parts replaced. It returns the
	// original data when nothing qualifies.
	Mask(data string) string
}

var cardCandidate = regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`)

// CardNumberMasker masks digit runs that pass the Luhn checksum, so order
// numbers and phone numbers of similar length are left alone.
type CardNumberMasker struct{}

// Name implements Masker.
func (CardNumberMasker) Name() string { return "card_number" }

// AppliesTo implements Masker.
func (CardNumberMasker) AppliesTo(data string) bool {
	digits := 0
	for _, r := range data {
		if r >= '0' && r <= '9' {
			digits++
			if digits >= 13 {
				return true
			}
		}
	}
	return false
}

// Mask implements Masker.
func (CardNumberMasker) Mask(data string) string {
	return cardCandidate.ReplaceAllStringFunc(data, func(s string) string {
		if luhnValid(s) {
			return "__MASKED_CARD__"
		}
		return s
	})
}

func luhnValid(s string) bool {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 13 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
