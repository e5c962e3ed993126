package tokenizer

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	sentenceBoundary = regexp.MustCompile(`[.!?]+\s+`)
	wordUnit         = regexp.MustCompile(`\S+\s*`)
)

type splitLevel int

const (
	levelSentence splitLevel = iota
	levelWord
)

// SplitByTokens splits text into ordered pieces of at most maxTokens tokens as
// measured by count. Concatenating the pieces reproduces text exactly.
//
// Text is cut at sentence boundaries first. A sentence that alone exceeds the
// limit is cut at word boundaries, and a word that alone exceeds the limit is
// emitted as its own piece. Empty text yields no pieces.
func SplitByTokens(text string, maxTokens int, count CountFunc) ([]string, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("%w: maxTokens must be positive, got %d", ErrInvalidInput, maxTokens)
	}
	if text == "" {
		return []string{}, nil
	}

	total, err := count(text)
	if err != nil {
		return nil, err
	}
	if total <= maxTokens {
		return []string{text}, nil
	}

	return packUnits(sentenceUnits(text), maxTokens, count, levelSentence)
}

// sentenceUnits cuts text after each run of sentence terminators and the
// whitespace that follows it.
func sentenceUnits(text string) []string {
	var units []string
	prev := 0
	for _, loc := range sentenceBoundary.FindAllStringIndex(text, -1) {
		units = append(units, text[prev:loc[1]])
		prev = loc[1]
	}
	if prev < len(text) {
		units = append(units, text[prev:])
	}
	return units
}

// wordUnits cuts text into words with their trailing whitespace. Leading
// whitespace stays attached to the first word.
func wordUnits(text string) []string {
	locs := wordUnit.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}
	units := make([]string, 0, len(locs))
	for i, loc := range locs {
		start := loc[0]
		if i == 0 {
			start = 0
		}
		units = append(units, text[start:loc[1]])
	}
	return units
}

// packUnits grows each piece one unit at a time while the joined text still
// fits, measuring the joined text rather than adding unit counts, since
// counts are not additive. The largest fitting prefix is found by galloping
// then bisecting, which assumes a prefix never counts more than its
// extension.
func packUnits(units []string, maxTokens int, count CountFunc, level splitLevel) ([]string, error) {
	// Units are contiguous, so piece [i, j) is base[offsets[i]:offsets[j]].
	base := strings.Join(units, "")
	offsets := make([]int, len(units)+1)
	for k, u := range units {
		offsets[k+1] = offsets[k] + len(u)
	}
	fits := func(i, j int) (bool, error) {
		n, err := count(base[offsets[i]:offsets[j]])
		if err != nil {
			return false, err
		}
		return n <= maxTokens, nil
	}

	var pieces []string
	i := 0
	for i < len(units) {
		ok, err := fits(i, i+1)
		if err != nil {
			return nil, err
		}
		if !ok {
			if level == levelSentence {
				sub, err := packUnits(wordUnits(units[i]), maxTokens, count, levelWord)
				if err != nil {
					return nil, err
				}
				pieces = append(pieces, sub...)
			} else {
				pieces = append(pieces, units[i])
			}
			i++
			continue
		}

		// lo always fits; hi, when set, does not.
		lo, hi := i+1, -1
		for step := 1; lo < len(units); step *= 2 {
			next := min(lo+step, len(units))
			ok, err := fits(i, next)
			if err != nil {
				return nil, err
			}
			if !ok {
				hi = next
				break
			}
			lo = next
		}
		for hi > lo+1 {
			mid := lo + (hi-lo)/2
			ok, err := fits(i, mid)
			if err != nil {
				return nil, err
			}
			if ok {
				lo = mid
			} else {
				hi = mid
			}
		}

		pieces = append(pieces, base[offsets[i]:offsets[lo]])
		i = lo
	}
	return pieces, nil
}
