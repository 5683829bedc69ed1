package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/hession/teachmate/internal/client"
	"github.com/hession/teachmate/internal/history"
	"github.com/hession/teachmate/internal/memory"
)

const (
	Version = "0.1.0"

	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// teachSeparator splits "/teach <prompt> => <response>"
const teachSeparator = "=>"

// API is the part of the server the chat session talks to
type API interface {
	Ask(ctx context.Context, prompt string) (string, error)
	Teach(ctx context.Context, prompt, response string) (string, error)
	History(ctx context.Context) ([]history.Entry, error)
	Memory(ctx context.Context) ([]memory.Entry, error)
}

var _ API = (*client.Client)(nil)

// Session executes chat lines against an API and writes results to out
type Session struct {
	api API
	out io.Writer
}

// NewSession creates a chat session
func NewSession(api API, out io.Writer) *Session {
	return &Session{api: api, out: out}
}

// Run starts the interactive chat against api
func Run(ctx context.Context, api API, server string) error {
	printWelcome(server)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            fmt.Sprintf("%sYou: %s", colorGreen, colorReset),
		HistoryFile:       getHistoryFilePath(),
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("/teach"),
			readline.PcItem("/history"),
			readline.PcItem("/memory"),
			readline.PcItem("/help"),
			readline.PcItem("/exit"),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	s := NewSession(api, rl.Stdout())

	// Multi-line input mode
	var multiLineBuffer strings.Builder
	inMultiLine := false

	for {
		if inMultiLine {
			rl.SetPrompt(fmt.Sprintf("%s...  %s", colorGray, colorReset))
		} else {
			rl.SetPrompt(fmt.Sprintf("%sYou: %s", colorGreen, colorReset))
		}

		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if inMultiLine {
					multiLineBuffer.Reset()
					inMultiLine = false
					continue
				}
				fmt.Fprintf(s.out, "%sPress Ctrl+D or type /exit to quit%s\n", colorYellow, colorReset)
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintf(s.out, "\n%sGoodbye!%s\n", colorCyan, colorReset)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		if inMultiLine {
			if line != "" {
				multiLineBuffer.WriteString(line)
				multiLineBuffer.WriteString("\n")
				continue
			}
			inMultiLine = false
			line = multiLineBuffer.String()
			multiLineBuffer.Reset()
		} else if strings.HasSuffix(strings.TrimSpace(line), "\\") {
			inMultiLine = true
			multiLineBuffer.WriteString(strings.TrimSuffix(strings.TrimSpace(line), "\\"))
			multiLineBuffer.WriteString("\n")
			fmt.Fprintf(s.out, "%s(Multi-line mode: press Enter twice to submit, Ctrl+C to cancel)%s\n", colorGray, colorReset)
			continue
		}

		if !s.Handle(ctx, line) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Handle runs one line of input. It returns false when the session should end.
func (s *Session) Handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}
	if strings.HasPrefix(input, "/") {
		return s.handleCommand(ctx, input)
	}

	reply, err := s.api.Ask(ctx, input)
	if err != nil {
		s.printError(err)
		return true
	}
	fmt.Fprintf(s.out, "%sTeachMate: %s%s\n\n", colorBlue, colorReset, reply)
	return true
}

// handleCommand handles built-in commands, returns true to continue loop, false to exit
func (s *Session) handleCommand(ctx context.Context, input string) bool {
	command, rest, _ := strings.Cut(input, " ")

	switch strings.ToLower(command) {
	case "/help":
		printHelp(s.out)

	case "/exit", "/quit", "/q":
		fmt.Fprintf(s.out, "%sGoodbye!%s\n", colorCyan, colorReset)
		return false

	case "/teach":
		prompt, response, ok := strings.Cut(rest, teachSeparator)
		if !ok {
			fmt.Fprintf(s.out, "%sUsage: /teach <prompt> %s <response>%s\n", colorYellow, teachSeparator, colorReset)
			return true
		}
		msg, err := s.api.Teach(ctx, strings.TrimSpace(prompt), response)
		if err != nil {
			s.printError(err)
			return true
		}
		fmt.Fprintf(s.out, "%s%s%s\n", colorGreen, msg, colorReset)

	case "/history":
		entries, err := s.api.History(ctx)
		if err != nil {
			s.printError(err)
			return true
		}
		PrintHistory(s.out, entries)

	case "/memory":
		entries, err := s.api.Memory(ctx)
		if err != nil {
			s.printError(err)
			return true
		}
		PrintMemory(s.out, entries)

	default:
		fmt.Fprintf(s.out, "%sUnknown command: %s%s\n", colorYellow, command, colorReset)
		fmt.Fprintln(s.out, "Type /help for available commands")
	}
	return true
}

func (s *Session) printError(err error) {
	fmt.Fprintf(s.out, "%sError: %v%s\n", colorRed, err, colorReset)
}

// PrintHistory writes chat history, oldest first
func PrintHistory(out io.Writer, entries []history.Entry) {
	if len(entries) == 0 {
		fmt.Fprintf(out, "%sNo history yet%s\n", colorGray, colorReset)
		return
	}
	for _, e := range entries {
		label := "You"
		if e.Kind == history.KindResponse {
			label = "TeachMate"
		}
		fmt.Fprintf(out, "  %-10s %s\n", label+":", truncateForDisplay(e.Text, 80))
	}
}

// PrintMemory writes taught memory in insertion order
func PrintMemory(out io.Writer, entries []memory.Entry) {
	if len(entries) == 0 {
		fmt.Fprintf(out, "%sMemory is empty%s\n", colorGray, colorReset)
		return
	}
	fmt.Fprintf(out, "%s%d learned prompts%s\n", colorCyan, len(entries), colorReset)
	for i, e := range entries {
		fmt.Fprintf(out, "  %3d. %s %s=>%s %s\n", i+1,
			truncateForDisplay(e.Prompt, 40), colorGray, colorReset, truncateForDisplay(e.Response, 60))
	}
}

// truncateForDisplay flattens text to one line and cuts it at maxLen bytes
func truncateForDisplay(text string, maxLen int) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.TrimSpace(text)

	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}

func printWelcome(server string) {
	fmt.Printf("\n%sTeachMate v%s%s - connected to %s\n", colorCyan, Version, colorReset, server)
	fmt.Printf("%sType /help for help, /exit to quit%s\n\n", colorGray, colorReset)
}

// getHistoryFilePath returns the readline history file path
func getHistoryFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	historyDir := filepath.Join(homeDir, ".teachmate")
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return ""
	}
	return filepath.Join(historyDir, "chat_history")
}

func printHelp(out io.Writer) {
	fmt.Fprintf(out, `
%sTeachMate Help%s

%sCommands:%s
  /teach <prompt> => <response>  - Teach a reply
  /history                       - Show this server's chat history
  /memory                        - List everything taught so far
  /help                          - Show this help message
  /exit                          - Exit

%sInput Tips:%s
  • Anything else is asked as a prompt
  • Use Up/Down arrow keys to browse input history
  • End line with \ for multi-line input
  • Press Enter twice to submit in multi-line mode

`, colorCyan, colorReset, colorYellow, colorReset, colorYellow, colorReset)
}
