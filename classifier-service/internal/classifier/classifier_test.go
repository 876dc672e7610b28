package classifier

import (
	"strings"
	"testing"

	"github.com/shamilramasanov/mellchat-sub003/classifier-service/internal/domain"
)

func history(contents ...string) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(contents))
	for _, c := range contents {
		out = append(out, domain.ChatMessage{UserID: "u1", Content: c})
	}
	return out
}

func TestClassifyLengthBounds(t *testing.T) {
	c := New(DefaultLexicon())

	cases := []struct {
		name string
		text string
		want bool
	}{
		{name: "empty", text: "", want: false},
		{name: "blank", text: "     ", want: false},
		{name: "two runes", text: "a?", want: false},
		{name: "two runes padded", text: "   a?   ", want: false},
		{name: "three runes", text: "ab?", want: true},
		{name: "three cyrillic runes", text: "кто", want: true},
		{name: "exactly max", text: strings.Repeat("x", MaxLength-1) + "?", want: true},
		{name: "over max", text: strings.Repeat("x", MaxLength) + "?", want: false},
		{name: "over max who", text: "who " + strings.Repeat("y", MaxLength), want: false},
	}

	for _, tc := range cases {
		if got := c.Classify(tc.text, nil); got != tc.want {
			t.Fatalf("%s: Classify(%q) = %v, want %v", tc.name, tc.text, got, tc.want)
		}
	}
}

func TestClassifyLinksAreNeverQuestions(t *testing.T) {
	c := New(DefaultLexicon())
	long := history("this is a long enough previous statement")

	texts := []string{
		"what is https://example.org?",
		"how about www.example.org?",
		"где купить site.ru?",
		"can you open shop.com",
		"http://x.io ❓",
		"а как example.net?",
	}
	for _, text := range texts {
		if c.Classify(text, long) {
			t.Fatalf("Classify(%q) = true, want false for link", text)
		}
		if rule := c.Explain(text, long); rule != RuleLink {
			t.Fatalf("Explain(%q) = %s, want %s", text, rule, RuleLink)
		}
	}
}

func TestClassifyInterrogativeStarters(t *testing.T) {
	c := New(DefaultLexicon())

	cases := []struct {
		text string
		want bool
	}{
		{text: "Как дела?", want: true},
		{text: "как дела", want: true},
		{text: "Who won the match", want: true},
		{text: "кто-нибудь тут", want: true},
		{text: "что", want: true},
		{text: "How", want: true},
		{text: "чтобы было", want: false},
		{text: "isn't it great", want: false},
		{text: "whatever man", want: false},
		{text: "круто", want: false},
	}

	for _, tc := range cases {
		if got := c.Classify(tc.text, nil); got != tc.want {
			t.Fatalf("Classify(%q) = %v (rule %s), want %v", tc.text, got, c.Explain(tc.text, nil), tc.want)
		}
	}
}

func TestClassifyPhrasePatterns(t *testing.T) {
	c := New(DefaultLexicon())

	texts := []string{
		"so can i join later",
		"ok what if we lose",
		"but why though",
		"hey is it live already",
		"tell me how to install it",
		"а можно ли так делать",
		"ребят, подскажите трек",
		"интересно почему так",
	}
	for _, text := range texts {
		if rule := c.Explain(text, nil); rule != RulePhrase {
			t.Fatalf("Explain(%q) = %s, want %s", text, rule, RulePhrase)
		}
	}
}

func TestClassifyEmoji(t *testing.T) {
	c := New(DefaultLexicon())
	if rule := c.Explain("стрим сегодня 🤔", nil); rule != RuleEmoji {
		t.Fatalf("expected emoji rule, got %s", rule)
	}
	if rule := c.Explain("serious ❓", nil); rule != RuleEmoji {
		t.Fatalf("expected emoji rule, got %s", rule)
	}
}

func TestClassifyShortFollowUpNeedsContext(t *testing.T) {
	c := New(DefaultLexicon())

	if !c.Classify("а как?", history("some 25+ character earlier statement")) {
		t.Fatal("expected follow-up after a long message to be a question")
	}
	if c.Classify("а как?", nil) {
		t.Fatal("expected follow-up without history not to be a question")
	}
	if c.Classify("а как?", history("short one")) {
		t.Fatal("expected follow-up after a short message not to be a question")
	}
	// Only the most recent message counts.
	if c.Classify("and then?", history("a really long statement about the game", "ok")) {
		t.Fatal("expected only the latest prior message to be consulted")
	}
	// Exactly 20 characters is not longer than the threshold.
	if c.Classify("and then?", history(strings.Repeat("z", 20))) {
		t.Fatal("expected a 20 character message not to satisfy the threshold")
	}
	if !c.Classify("and then?", history(strings.Repeat("z", 21))) {
		t.Fatal("expected a 21 character message to satisfy the threshold")
	}
}

func TestClassifyLongConnectiveLedQuestion(t *testing.T) {
	c := New(DefaultLexicon())

	texts := []string{
		"But does it work on linux?",
		"And do you stream tomorrow?",
		"Так это правда?",
		"А стрим завтра будет?",
		"so did you finish the game?",
	}
	for _, text := range texts {
		if rule := c.Explain(text, nil); rule != RuleQuestionMark {
			t.Fatalf("Explain(%q) = %s, want %s", text, rule, RuleQuestionMark)
		}
	}

	if rule := c.Explain("and then we left", nil); rule != RuleNone {
		t.Fatalf("expected connective-led statement to be no question, got %s", rule)
	}
	if rule := c.Explain("а как?", nil); rule != RuleFollowUpNoContext {
		t.Fatalf("expected short follow-up to stay decisive, got %s", rule)
	}
}

func TestClassifyHistoryIrrelevantWithoutSignal(t *testing.T) {
	c := New(DefaultLexicon())
	if c.Classify("круто", history(strings.Repeat("a", 25))) {
		t.Fatal("expected plain statement not to be a question")
	}
}

func TestClassifyTrailingQuestionMark(t *testing.T) {
	c := New(DefaultLexicon())
	if rule := c.Explain("стрим будет завтра?", nil); rule != RuleQuestionMark {
		t.Fatalf("expected question mark rule, got %s", rule)
	}
	if rule := c.Explain("стрим будет завтра", nil); rule != RuleNone {
		t.Fatalf("expected no rule, got %s", rule)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := New(DefaultLexicon())
	h := history("a long message that sets the context for later")
	for i := 0; i < 10; i++ {
		if !c.Classify("а где?", h) {
			t.Fatalf("iteration %d: classification changed", i)
		}
	}
}

func TestClassifyValue(t *testing.T) {
	c := New(DefaultLexicon())
	text := "Как дела?"

	if !c.ClassifyValue(text, nil) {
		t.Fatal("expected string value to be classified")
	}
	if !c.ClassifyValue(&text, nil) {
		t.Fatal("expected *string value to be classified")
	}
	var nilText *string
	for _, v := range []any{nil, nilText, 42, 3.5, []string{"who?"}, map[string]any{"content": "who?"}} {
		if c.ClassifyValue(v, nil) {
			t.Fatalf("expected %T to fail closed", v)
		}
	}
}

func TestLexiconExtend(t *testing.T) {
	base := DefaultLexicon()
	ext := base.Extend([]string{"  Warum ", ""}, []string{"🙋"})

	c := New(ext)
	if !c.Classify("warum nicht", nil) {
		t.Fatal("expected extended starter to be recognised")
	}
	if !c.Classify("hello 🙋", nil) {
		t.Fatal("expected extended emoji to be recognised")
	}
	if New(base).Classify("warum nicht", nil) {
		t.Fatal("extending must not mutate the base lexicon")
	}
}
