package chat

import (
	"unicode"
)

// EstimateTokens approximates the number of subword tokens in text. Letter
// runs cost one token per four runes, digit runs one per three, and every
// punctuation mark or ideograph costs one. It is a budget for chunking
// context excerpts, not a tokenizer.
func EstimateTokens(text string) int {
	count := 0
	letters, digits := 0, 0

	flush := func() {
		count += ceilDiv(letters, 4) + ceilDiv(digits, 3)
		letters, digits = 0, 0
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			flush()
			count++
		case unicode.IsLetter(r):
			if digits > 0 {
				flush()
			}
			letters++
		case unicode.IsDigit(r):
			if letters > 0 {
				flush()
			}
			digits++
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			count++
		}
	}
	flush()
	return count
}

func ceilDiv(n, d int) int {
	return (n + d - 1) / d
}
