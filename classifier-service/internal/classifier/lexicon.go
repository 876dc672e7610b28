package classifier

import (
	"regexp"
	"strings"
)

// Lexicon is the word-list configuration of the classifier. It is passed in
// at construction so locales can be extended without touching the rules.
type Lexicon struct {
	// InterrogativeStarters are lower-case words (or short phrases) that mark
	// a question when they open the message.
	InterrogativeStarters map[string]struct{}
	// PhrasePatterns capture idiomatic question phrasings anywhere in the text.
	PhrasePatterns []*regexp.Regexp
	// QuestionEmoji are glyphs that on their own mark a question.
	QuestionEmoji []string
	// ShortConnectives matches a short continuation ("а как?", "and then?")
	// whose meaning depends on the author's previous message.
	ShortConnectives *regexp.Regexp
	// Links matches URL-like text; such messages are never questions.
	Links *regexp.Regexp
	// FollowUpMinLength is the length the previous message must exceed for a
	// short continuation to count as a question.
	FollowUpMinLength int
	// FollowUpMaxWords bounds a short continuation, connective included.
	// Longer connective-led messages are classified by the later rules.
	FollowUpMaxWords int
}

// Unicode-aware word boundaries: RE2's \b only understands ASCII, which
// would break every Cyrillic pattern.
const (
	wordStart = `(?:^|[^\p{L}\p{N}])`
	wordEnd   = `(?:$|[^\p{L}\p{N}])`
)

var defaultStarters = []string{
	// English
	"who", "whom", "whose", "what", "which", "where", "why", "when", "how",
	"can", "could", "would", "should", "will", "shall",
	"is", "are", "am", "was", "were",
	"do", "does", "did", "have", "has",
	// Russian
	"кто", "что", "чего", "чем", "где", "куда", "откуда", "почему", "зачем",
	"когда", "как", "какой", "какая", "какое", "какие", "каким", "сколько",
	"чей", "чья", "чьё", "чье", "разве", "неужели", "можно", "ли",
}

var defaultPhrases = []string{
	// English
	`(?i)\bcan (?:i|you|we|someone|anyone)\b`,
	`(?i)\bwhat if\b`,
	`(?i)\bwhy\b`,
	`(?i)\bis (?:it|this|that|there)\b`,
	`(?i)\bhow (?:to|do|does|can|much|many|long)\b`,
	`(?i)\b(?:does|do) (?:anyone|anybody|someone)\b`,
	`(?i)\bany(?:one|body) knows?\b`,
	// Russian
	`(?i)` + wordStart + `можно ли` + wordEnd,
	`(?i)` + wordStart + `что если` + wordEnd,
	`(?i)` + wordStart + `почему` + wordEnd,
	`(?i)` + wordStart + `зачем` + wordEnd,
	`(?i)` + wordStart + `как (?:сделать|называется|зовут|быть|думаешь|думаете)` + wordEnd,
	`(?i)` + wordStart + `(?:не )?подскаж(?:и|ите|ете)` + wordEnd,
	`(?i)` + wordStart + `кто-(?:нибудь|то) (?:знает|в курсе)` + wordEnd,
	`(?i)` + wordStart + `есть ли` + wordEnd,
	`(?i)` + wordStart + `так ли` + wordEnd,
}

var defaultEmoji = []string{"❓", "❔", "⁉", "🤔"}

// DefaultLexicon returns the Russian/English word lists.
func DefaultLexicon() Lexicon {
	lex := Lexicon{
		InterrogativeStarters: make(map[string]struct{}, len(defaultStarters)),
		QuestionEmoji:         append([]string(nil), defaultEmoji...),
		ShortConnectives: regexp.MustCompile(
			`(?i)^(?:а|и|ну|но|так|тогда|также|тоже|ещё|еще|and|then|also|so|but|or)(?:[\s,.!?…]|$)`),
		Links:             regexp.MustCompile(`(?i)(?:https?://|www\.|\.com|\.ru|\.net)`),
		FollowUpMinLength: 20,
		FollowUpMaxWords:  2,
	}
	for _, w := range defaultStarters {
		lex.InterrogativeStarters[w] = struct{}{}
	}
	for _, p := range defaultPhrases {
		lex.PhrasePatterns = append(lex.PhrasePatterns, regexp.MustCompile(p))
	}
	return lex
}

// Extend returns a copy of the lexicon with extra starters and emoji added.
// Blank entries are ignored and starters are lower-cased.
func (l Lexicon) Extend(starters, emoji []string) Lexicon {
	out := l
	out.InterrogativeStarters = make(map[string]struct{}, len(l.InterrogativeStarters)+len(starters))
	for w := range l.InterrogativeStarters {
		out.InterrogativeStarters[w] = struct{}{}
	}
	for _, w := range starters {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out.InterrogativeStarters[w] = struct{}{}
		}
	}

	out.QuestionEmoji = append([]string(nil), l.QuestionEmoji...)
	for _, e := range emoji {
		if e = strings.TrimSpace(e); e != "" {
			out.QuestionEmoji = append(out.QuestionEmoji, e)
		}
	}
	return out
}
