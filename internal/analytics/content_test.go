package analytics

import "testing"

func TestIsQuestion(t *testing.T) {
	cases := map[string]bool{
		"anyone around?":          true,
		"What is the plan":        true,
		"  does it start at 6":    true,
		"whatever works for me":   false,
		"island trip next week":   false,
		"see you tomorrow":        false,
		"":                        false,
		"Can we move it to 7pm":   true,
		"cannot make it, sorry!!": false,
	}
	for body, want := range cases {
		if got := IsQuestion(body); got != want {
			t.Fatalf("IsQuestion(%q) = %v, want %v", body, got, want)
		}
	}
}

func TestHasLink(t *testing.T) {
	if !HasLink("slides at https://example.org/deck") {
		t.Fatal("expected https link")
	}
	if !HasLink("try WWW.example.org") {
		t.Fatal("expected www link")
	}
	if HasLink("http is a protocol") {
		t.Fatal("bare scheme word is not a link")
	}
}

func TestHasEmojiAndLength(t *testing.T) {
	if !HasEmoji("great job 👍") {
		t.Fatal("expected emoji")
	}
	if !HasEmoji("sunny ☀") {
		t.Fatal("expected BMP symbol")
	}
	if HasEmoji("plain text :)") {
		t.Fatal("ascii emoticon is not a pictograph")
	}
	if got := Length("héllo 👋"); got != 7 {
		t.Fatalf("expected 7 code points, got %d", got)
	}
}
