package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hession/teachmate/internal/history"
	"github.com/hession/teachmate/internal/memory"
)

type fakeAPI struct {
	asked   []string
	taught  [][2]string
	entries []history.Entry
	memory  []memory.Entry
	err     error
}

func (f *fakeAPI) Ask(ctx context.Context, prompt string) (string, error) {
	f.asked = append(f.asked, prompt)
	if f.err != nil {
		return "", f.err
	}
	return "reply to " + prompt, nil
}

func (f *fakeAPI) Teach(ctx context.Context, prompt, response string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.taught = append(f.taught, [2]string{prompt, response})
	return "Learned: \"" + prompt + "\" -> \"" + strings.TrimSpace(response) + "\"", nil
}

func (f *fakeAPI) History(ctx context.Context) ([]history.Entry, error) {
	return f.entries, f.err
}

func (f *fakeAPI) Memory(ctx context.Context) ([]memory.Entry, error) {
	return f.memory, f.err
}

func run(api *fakeAPI, lines ...string) (string, bool) {
	var out bytes.Buffer
	s := NewSession(api, &out)
	cont := true
	for _, line := range lines {
		if cont = s.Handle(context.Background(), line); !cont {
			break
		}
	}
	return out.String(), cont
}

func TestVersion(t *testing.T) {
	if Version != "0.1.0" {
		t.Errorf("Expected Version to be '0.1.0', got '%s'", Version)
	}
}

func TestTruncateForDisplay(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{name: "short text", text: "Hello", maxLen: 10, expected: "Hello"},
		{name: "exact length", text: "Hello", maxLen: 5, expected: "Hello"},
		{name: "truncate", text: "Hello World", maxLen: 5, expected: "Hello..."},
		{name: "with newlines", text: "Hello\nWorld", maxLen: 20, expected: "Hello World"},
		{name: "with carriage return", text: "Hello\r\nWorld", maxLen: 20, expected: "Hello World"},
		{name: "with leading/trailing spaces", text: "  Hello  ", maxLen: 20, expected: "Hello"},
		{name: "empty string", text: "", maxLen: 10, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateForDisplay(tt.text, tt.maxLen)
			if got != tt.expected {
				t.Errorf("truncateForDisplay(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.expected)
			}
		})
	}
}

func TestHandle_Ask(t *testing.T) {
	api := &fakeAPI{}
	out, cont := run(api, "  Hello there  ", "", "   ")

	if !cont {
		t.Fatal("session ended unexpectedly")
	}
	if len(api.asked) != 1 || api.asked[0] != "Hello there" {
		t.Errorf("asked = %v, want [Hello there]", api.asked)
	}
	if !strings.Contains(out, "reply to Hello there") {
		t.Errorf("output missing reply: %q", out)
	}
}

func TestHandle_Teach(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantTaught [][2]string
		wantOut    string
	}{
		{
			name:       "prompt and response",
			line:       "/teach Hello there friend => Hi!",
			wantTaught: [][2]string{{"Hello there friend", " Hi!"}},
			wantOut:    `Learned: "Hello there friend" -> "Hi!"`,
		},
		{
			name:       "response may contain separator",
			line:       "/teach arrow => use => here",
			wantTaught: [][2]string{{"arrow", " use => here"}},
			wantOut:    `Learned: "arrow" -> "use => here"`,
		},
		{
			name:    "missing separator",
			line:    "/teach just a prompt",
			wantOut: "Usage: /teach",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{}
			out, _ := run(api, tt.line)
			if len(api.taught) != len(tt.wantTaught) {
				t.Fatalf("taught = %v, want %v", api.taught, tt.wantTaught)
			}
			for i := range tt.wantTaught {
				if api.taught[i] != tt.wantTaught[i] {
					t.Errorf("taught[%d] = %v, want %v", i, api.taught[i], tt.wantTaught[i])
				}
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output %q does not contain %q", out, tt.wantOut)
			}
		})
	}
}

func TestHandle_HistoryAndMemory(t *testing.T) {
	api := &fakeAPI{
		entries: []history.Entry{
			{Kind: history.KindPrompt, Text: "zeta"},
			{Kind: history.KindResponse, Text: "last letter"},
		},
		memory: []memory.Entry{
			{Prompt: "zeta", Response: "last letter"},
			{Prompt: "alpha", Response: "first letter"},
		},
	}
	out, _ := run(api, "/history", "/memory")

	for _, want := range []string{"You:", "zeta", "TeachMate:", "last letter", "2 learned prompts"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "1. zeta") > strings.Index(out, "2. alpha") {
		t.Errorf("memory not listed in insertion order:\n%s", out)
	}
}

func TestHandle_EmptyListings(t *testing.T) {
	out, _ := run(&fakeAPI{}, "/history", "/memory")
	if !strings.Contains(out, "No history yet") || !strings.Contains(out, "Memory is empty") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestHandle_Errors(t *testing.T) {
	api := &fakeAPI{err: errors.New("connection refused")}
	out, cont := run(api, "hello", "/teach a => b", "/memory")

	if !cont {
		t.Fatal("errors must not end the session")
	}
	if got := strings.Count(out, "Error: connection refused"); got != 3 {
		t.Errorf("expected 3 errors, got %d:\n%s", got, out)
	}
}

func TestHandle_Commands(t *testing.T) {
	out, cont := run(&fakeAPI{}, "/help", "/bogus")
	if !cont {
		t.Fatal("session ended unexpectedly")
	}
	if !strings.Contains(out, "/teach <prompt> => <response>") {
		t.Errorf("help missing teach usage: %q", out)
	}
	if !strings.Contains(out, "Unknown command: /bogus") {
		t.Errorf("missing unknown command notice: %q", out)
	}

	for _, cmd := range []string{"/exit", "/quit", "/q", "/EXIT"} {
		api := &fakeAPI{}
		if _, cont := run(api, cmd, "after exit"); cont {
			t.Errorf("%s did not end the session", cmd)
		}
		if len(api.asked) != 0 {
			t.Errorf("%s: input after exit was processed", cmd)
		}
	}
}
