package famdb

import "strings"

// soundexCode maps an uppercase letter to its American Soundex digit class.
// H and W have no entry here and are not dropped outright: Soundex codes
// them as soundexSkip, meaning "skip for coding purposes but do not break
// adjacency", matching the reference algorithm.
var soundexCode = map[byte]int8{
	'A': 0, 'E': 0, 'I': 0, 'O': 0, 'U': 0, 'Y': 0,
	'B': 1, 'F': 1, 'P': 1, 'V': 1,
	'C': 2, 'G': 2, 'J': 2, 'K': 2, 'Q': 2, 'S': 2, 'X': 2, 'Z': 2,
	'D': 3, 'T': 3,
	'L': 4,
	'M': 5, 'N': 5,
	'R': 6,
}

const soundexSkip int8 = -1

// Soundex computes the American Soundex code of word: keep the first
// letter, map the remaining letters through soundexCode (H/W are
// transparent, not code-breaking), collapse adjacent identical codes,
// drop vowel codes outside the first position, then pad/truncate to
// exactly four characters. Only letters are coded; a word already
// containing Soundex-shaped digits is not a fixed point of this
// function (the digits themselves carry no code).
func Soundex(word string) string {
	if word == "" {
		return "0000"
	}

	upper := strings.ToUpper(word)
	codes := make([]int8, 0, len(upper))
	for i := 0; i < len(upper); i++ {
		ch := upper[i]
		if c, ok := soundexCode[ch]; ok {
			codes = append(codes, c)
		} else if ch == 'H' || ch == 'W' {
			codes = append(codes, soundexSkip)
		}
	}

	// Drop H/W markers and adjacent identical codes, scanning from the
	// second entry onward.
	i := 1
	for i < len(codes) {
		code := codes[i]
		prev := codes[i-1]
		if code == soundexSkip {
			codes = append(codes[:i], codes[i+1:]...)
		} else if code == prev {
			codes = append(codes[:i], codes[i+1:]...)
		} else {
			i++
		}
	}

	var b strings.Builder
	b.WriteByte(word[0])
	for _, c := range codes[1:] {
		if c > 0 {
			b.WriteByte(byte('0' + c))
		}
	}

	out := b.String()
	for len(out) < 4 {
		out += "0"
	}
	return out[:4]
}

// SoundsLike reports whether first and second share a Soundex code.
func SoundsLike(first, second string) bool {
	return Soundex(first) == Soundex(second)
}
