// Package tokens approximates LLM token counts from text length.
//
// The estimate is deliberately coarse: one token per 3.8 characters, rounded
// up. No tokenizer is consulted.
package tokens

import "unicode/utf8"

// Ratio is the assumed number of characters per token.
const Ratio = 3.8

// ratio expressed as a fraction so the estimate stays in integer arithmetic.
const (
	ratioNum = 38
	ratioDen = 10
)

// CountChars returns the character count as runes (not bytes).
func CountChars(text string) int {
	return utf8.RuneCountInString(text)
}

// Estimate returns ceil(CountChars(text) / Ratio).
func Estimate(text string) int {
	return FromChars(CountChars(text))
}

// FromChars returns the token estimate for n characters.
func FromChars(n int) int {
	if n <= 0 {
		return 0
	}
	return (n*ratioDen + ratioNum - 1) / ratioNum
}

// CharsFor returns floor(tokens * Ratio), the character allowance for a
// token budget.
func CharsFor(tokens int) int {
	if tokens <= 0 {
		return 0
	}
	return tokens * ratioNum / ratioDen
}

// Prefix returns the first n runes of text.
func Prefix(text string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
