// Package classifier decides whether a chat message is a question.
//
// The decision is a pure function of the message text and the author's
// recent history. Rules are evaluated in a fixed order and the first one
// that applies decides.
package classifier

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/domain"
)

// Length bounds on the trimmed text, inclusive.
const (
	MinLength = 3
	MaxLength = 500
)

// Rule names the rule that decided a classification.
type Rule string

const (
	RuleInvalid           Rule = "invalid"
	RuleLink              Rule = "link"
	RuleStarter           Rule = "interrogative_starter"
	RulePhrase            Rule = "phrase_pattern"
	RuleEmoji             Rule = "question_emoji"
	RuleFollowUp          Rule = "follow_up"
	RuleFollowUpNoContext Rule = "follow_up_without_context"
	RuleQuestionMark      Rule = "question_mark"
	RuleNone              Rule = "none"
)

// Question reports whether the rule classifies the message as a question.
func (r Rule) Question() bool {
	switch r {
	case RuleStarter, RulePhrase, RuleEmoji, RuleFollowUp, RuleQuestionMark:
		return true
	default:
		return false
	}
}

// Classifier applies a Lexicon. It holds no mutable state and is safe for
// concurrent use.
type Classifier struct {
	lex Lexicon
}

// New creates a classifier over the given lexicon.
func New(lex Lexicon) *Classifier {
	return &Classifier{lex: lex}
}

// Classify reports whether text is a question given the author's recent
// messages, oldest first.
func (c *Classifier) Classify(text string, history []domain.ChatMessage) bool {
	return c.Explain(text, history).Question()
}

// ClassifyValue classifies an untyped value, as decoded from a loosely typed
// payload. Anything that is not a string is not a question.
func (c *Classifier) ClassifyValue(v any, history []domain.ChatMessage) bool {
	switch t := v.(type) {
	case string:
		return c.Classify(t, history)
	case *string:
		if t == nil {
			return false
		}
		return c.Classify(*t, history)
	default:
		return false
	}
}

// Explain returns the rule that decides the classification of text.
func (c *Classifier) Explain(text string, history []domain.ChatMessage) Rule {
	trimmed := strings.TrimSpace(text)
	n := utf8.RuneCountInString(trimmed)
	if n < MinLength || n > MaxLength {
		return RuleInvalid
	}

	if c.lex.Links != nil && c.lex.Links.MatchString(trimmed) {
		return RuleLink
	}

	lower := strings.ToLower(trimmed)
	if c.startsWithInterrogative(lower) {
		return RuleStarter
	}

	for _, p := range c.lex.PhrasePatterns {
		if p.MatchString(lower) {
			return RulePhrase
		}
	}

	for _, e := range c.lex.QuestionEmoji {
		if strings.Contains(trimmed, e) {
			return RuleEmoji
		}
	}

	if c.isShortFollowUp(lower) {
		if c.followsLongMessage(history) {
			return RuleFollowUp
		}
		return RuleFollowUpNoContext
	}

	if strings.HasSuffix(trimmed, "?") {
		return RuleQuestionMark
	}

	return RuleNone
}

func (c *Classifier) startsWithInterrogative(lower string) bool {
	for w := range c.lex.InterrogativeStarters {
		if !strings.HasPrefix(lower, w) {
			continue
		}
		rest := lower[len(w):]
		if rest == "" {
			return true
		}
		r, _ := utf8.DecodeRuneInString(rest)
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func (c *Classifier) isShortFollowUp(lower string) bool {
	if c.lex.ShortConnectives == nil || !c.lex.ShortConnectives.MatchString(lower) {
		return false
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return c.lex.FollowUpMaxWords <= 0 || len(words) <= c.lex.FollowUpMaxWords
}

func (c *Classifier) followsLongMessage(history []domain.ChatMessage) bool {
	if len(history) == 0 {
		return false
	}
	last := strings.TrimSpace(history[len(history)-1].Content)
	return utf8.RuneCountInString(last) > c.lex.FollowUpMinLength
}
