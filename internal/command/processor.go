// Package command extracts spoken editing commands from recognized text.
//
// Three command families exist: text commands become literal fragments
// ("period" → "."), action commands become action identifiers and contribute
// no text ("delete that" → delete_last), and format commands transform the
// next ordinary word ("capitalize hello" → "Hello"). Everything else passes
// through untouched.
package command

import "strings"

// Process scans recognized text for command phrases and returns the
// assembled output text alongside extracted action identifiers in spoken
// order.
//
// The scan is left to right over whitespace-separated words, matching the
// longest phrase first so "new line" is consumed before "line" is considered
// on its own. Matching is case-insensitive; substrings never match, so
// "periodic" survives intact.
func Process(raw string) (string, []string) {
	words := strings.Fields(raw)

	var fragments []string
	var actions []string
	var pending formatTransform

	for i := 0; i < len(words); {
		matched := false
		for n := maxPhraseWords; n >= 1; n-- {
			if i+n > len(words) {
				continue
			}
			phrase := strings.ToLower(strings.Join(words[i:i+n], " "))
			if literal, ok := textCommands[phrase]; ok {
				fragments = append(fragments, literal)
				i += n
				matched = true
				break
			}
			if action, ok := actionCommands[phrase]; ok {
				actions = append(actions, action)
				i += n
				matched = true
				break
			}
			if transform, ok := formatCommands[phrase]; ok {
				pending = transform
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		word := words[i]
		if pending != nil {
			word = pending(word)
			pending = nil
		}
		fragments = append(fragments, word)
		i++
	}

	// Trim only literal spaces so a newline-only result survives.
	return strings.Trim(strings.Join(fragments, " "), " "), actions
}
