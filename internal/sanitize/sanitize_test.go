package sanitize

import "testing"

func TestClean_RemovesNUL(t *testing.T) {
	if got := Clean("a\x00b"); got != "ab" {
		t.Errorf("got %q, want %q", got, "ab")
	}
}

func TestClean_KeepsAccentedLatin(t *testing.T) {
	in := "café señor Grüße"
	if got := Clean(in); got != in {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestClean_ReplacesEmojiWithSpace(t *testing.T) {
	got := Clean("hello 🎉 world")
	if got != "hello world" {
		t.Errorf("got %q, want %q", got, "hello world")
	}
}

func TestClean_CollapsesSpaceRuns(t *testing.T) {
	got := Clean("a  \t  b")
	if got != "a b" {
		t.Errorf("got %q, want %q", got, "a b")
	}
}

func TestClean_Trims(t *testing.T) {
	if got := Clean("  padded  "); got != "padded" {
		t.Errorf("got %q, want %q", got, "padded")
	}
}

func TestClean_KeepsNewlines(t *testing.T) {
	got := Clean("line one\nline two")
	if got != "line one\nline two" {
		t.Errorf("got %q", got)
	}
}

func TestClean_Idempotent(t *testing.T) {
	inputs := []string{
		"plain",
		"a\x00b  c\td",
		"émoji 🎉 mix\r\nnext",
		"   \t ",
		"control\x07chars\x1b[0m",
	}
	for _, in := range inputs {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: %q vs %q", in, once, twice)
		}
	}
}
