package sparse

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// vietnameseLetters lists the precomposed lowercase letters accepted besides a-z.
const vietnameseLetters = "áàảãạăắằẳẵặâấầẩẫậéèẻẽẹêếềểễệíìỉĩịóòỏõọôốồổỗộơớờởỡợúùủũụưứừửữựýỳỷỹỵđ"

var letterSet = func() map[rune]struct{} {
	set := make(map[rune]struct{}, 26+len(vietnameseLetters))
	for r := 'a'; r <= 'z'; r++ {
		set[r] = struct{}{}
	}
	for _, r := range vietnameseLetters {
		set[r] = struct{}{}
	}
	return set
}()

func isTokenRune(r rune) bool {
	_, ok := letterSet[r]
	return ok
}

// Tokenize lowercases text and returns the maximal runs of Latin and
// Vietnamese letters. Digits, punctuation and other scripts act as separators.
// Input is NFC-normalised first so decomposed diacritics match the letter set.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ToLower(norm.NFC.String(text))

	var tokens []string
	start := -1
	for i, r := range text {
		if isTokenRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = append(tokens, text[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

// termFrequencies counts occurrences of each token.
func termFrequencies(tokens []string) map[string]int {
	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}
