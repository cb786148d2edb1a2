package email

import (
	"strings"
	"testing"
)

func TestRenderVerificationHTML(t *testing.T) {
	html, err := renderVerificationHTML("alice", "123456")
	if err != nil {
		t.Fatalf("renderVerificationHTML() error = %v", err)
	}

	body := string(html)
	for _, want := range []string{
		"Welcome to Whisper Net, alice!",
		"123456",
		"This code will expire in 1 hour.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

// Usernames come from user input — the template must escape, not interpolate.
func TestRenderVerificationHTML_EscapesUsername(t *testing.T) {
	html, err := renderVerificationHTML("<script>alert(1)</script>", "123456")
	if err != nil {
		t.Fatalf("renderVerificationHTML() error = %v", err)
	}

	if strings.Contains(string(html), "<script>") {
		t.Error("username was interpolated without escaping")
	}
}

func TestRenderVerificationText(t *testing.T) {
	got := string(renderVerificationText("alice", "654321"))
	want := "Hi alice, your verification code is: 654321"
	if got != want {
		t.Errorf("renderVerificationText() = %q, want %q", got, want)
	}
}
