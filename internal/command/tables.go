package command

import (
	"strings"
	"unicode"
)

// maxPhraseWords is the longest command phrase in any table. The scanner
// tries phrases of this length first so "new line" wins over a hypothetical
// "new" entry.
const maxPhraseWords = 2

// textCommands map spoken punctuation to the literal fragment it inserts.
var textCommands = map[string]string{
	"new line":      "\n",
	"new paragraph": "\n\n",
	"tab":           "\t",

	"period":            ".",
	"full stop":         ".",
	"comma":             ",",
	"question mark":     "?",
	"exclamation mark":  "!",
	"exclamation point": "!",
	"semicolon":         ";",
	"colon":             ":",
	"dash":              "-",
	"hyphen":            "-",
	"underscore":        "_",

	"quote":             "\"",
	"single quote":      "'",
	"open parenthesis":  "(",
	"close parenthesis": ")",
	"open bracket":      "[",
	"close bracket":     "]",
	"open brace":        "{",
	"close brace":       "}",
}

// actionCommands map editing verbs to action identifiers. Actions contribute
// no text; they are delivered to action callbacks in spoken order.
var actionCommands = map[string]string{
	"delete that":  "delete_last",
	"scratch that": "delete_last",
	"undo":         "undo",
	"redo":         "redo",

	"select all":       "select_all",
	"select line":      "select_line",
	"select word":      "select_word",
	"select paragraph": "select_paragraph",

	"cut":   "cut",
	"copy":  "copy",
	"paste": "paste",
}

type formatTransform func(string) string

// formatCommands arm a transform for the next ordinary word. A later format
// command overwrites an unapplied one, and a transform left pending at the
// end of the utterance is discarded.
var formatCommands = map[string]formatTransform{
	"capitalize": capitalizeWord,
	"uppercase":  strings.ToUpper,
	"all caps":   strings.ToUpper,
	"lowercase":  strings.ToLower,
	"no spaces":  stripSpaces,
}

func capitalizeWord(word string) string {
	runes := []rune(word)
	if len(runes) == 0 {
		return word
	}
	return string(unicode.ToUpper(runes[0])) + strings.ToLower(string(runes[1:]))
}

func stripSpaces(word string) string {
	return strings.ReplaceAll(word, " ", "")
}
