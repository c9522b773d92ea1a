package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"project-polaris/backend/internal/completion"
	"project-polaris/backend/internal/config"
	"project-polaris/backend/internal/editor"
	"project-polaris/backend/internal/suggestion"
)

// REPL holds the state of the interactive session
type REPL struct {
	path    string
	buf     *editor.Buffer
	session *suggestion.Session
	saver   *editor.AutoSaver
	reader  *bufio.Reader
}

func main() {
	cfg, err := config.LoadEditorConfig()
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	upstream := flag.String("url", cfg.CompletionUpstreamURL, "completion endpoint")
	debounce := flag.Duration("debounce", cfg.SuggestionDebounce, "suggestion quiet period")
	saveAfter := flag.Duration("save-after", cfg.SaveDebounce, "autosave quiet period")
	timeout := flag.Duration("timeout", cfg.CompletionTimeout, "completion request timeout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <file>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 || *upstream == "" {
		flag.Usage()
		os.Exit(2)
	}
	path := flag.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("Error reading %s: %v\n", path, err)
		os.Exit(1)
	}

	repl := &REPL{
		path:   path,
		buf:    editor.NewBuffer(string(data)),
		reader: bufio.NewReader(os.Stdin),
	}
	repl.saver = editor.NewAutoSaver(*saveAfter, func(content string) error {
		return os.WriteFile(path, []byte(content), 0o644)
	})
	repl.buf.Subscribe(func(c editor.Change) {
		if c.Kind == editor.ChangeText {
			repl.saver.Schedule(c.Snapshot.Text)
		}
	})
	repl.session = suggestion.NewSession(repl.buf, filepath.Base(path),
		completion.NewClient(*upstream, *timeout), suggestion.WithDebounce(*debounce))

	fmt.Printf("Polaris editor - %s\n", path)
	fmt.Println("Type 'help' for available commands, 'quit' to exit")
	fmt.Println()

	for {
		fmt.Print("polaris> ")
		input, err := repl.reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			break
		}
		input = strings.TrimRight(input, "\r\n")
		if strings.TrimSpace(input) == "" {
			continue
		}
		if !repl.handleCommand(input) {
			break
		}
	}

	repl.session.Close()
	if err := repl.saver.Flush(); err != nil {
		fmt.Printf("Error saving %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Println("Goodbye!")
}

func (r *REPL) handleCommand(input string) bool {
	cmd, rest, _ := strings.Cut(strings.TrimLeft(input, " "), " ")
	args := strings.Fields(rest)

	switch strings.ToLower(cmd) {
	case "help":
		r.printHelp()

	case "quit", "exit":
		return false

	case "show":
		r.cmdShow()

	case "status":
		r.cmdStatus()

	case "type":
		r.buf.InsertAtCursor(unescape(rest))

	case "newline", "enter":
		r.buf.InsertAtCursor("\n")

	case "backspace":
		n := intArg(args, 0, 1)
		for i := 0; i < n; i++ {
			r.buf.Backspace()
		}

	case "seek":
		r.buf.MoveCursor(intArg(args, 0, r.buf.Cursor()))

	case "goto":
		r.buf.MoveCursorTo(intArg(args, 0, 1)-1, intArg(args, 1, 1)-1)

	case "tab":
		if !r.session.HandleKey(suggestion.KeyTab) {
			r.buf.InsertAtCursor("\t")
		}
		r.cmdShow()

	case "esc":
		r.session.Dismiss()

	case "wait":
		r.cmdWait()

	case "save":
		if err := r.saver.Flush(); err != nil {
			fmt.Printf("Error saving: %v\n", err)
		} else {
			fmt.Printf("Saved %s\n", r.path)
		}

	default:
		fmt.Printf("Unknown command: %s. Type 'help' for available commands.\n", cmd)
	}
	return true
}

func (r *REPL) printHelp() {
	help := `
Available Commands:
-------------------

EDITING:
  type <text>        Insert text at the cursor (\n and \t are expanded)
  newline            Insert a line break
  backspace [n]      Delete n runes before the cursor
  seek <offset>      Move the cursor to a rune offset
  goto <line> <col>  Move the cursor to a 1-based line and column

SUGGESTIONS:
  wait               Wait for the current suggestion cycle and show the result
  tab                Accept the suggestion, or insert a tab when there is none
  esc                Dismiss the suggestion

OTHER:
  show               Print the document; ghost text appears as [[...]]
  status             Show cursor, suggestion state and save state
  save               Write pending changes now
  help               Show this help message
  quit, exit         Save and exit
`
	fmt.Println(help)
}

func (r *REPL) cmdShow() {
	snap := r.buf.Snapshot()
	text := []rune(snap.Text)
	ghost := "|"
	if g, ok := r.session.Ghost(); ok {
		ghost = "|[[" + g.Text + "]]"
	}
	fmt.Println(string(text[:snap.Cursor]) + ghost + string(text[snap.Cursor:]))
}

func (r *REPL) cmdStatus() {
	line, col := r.buf.Snapshot().LineCol()
	fmt.Printf("Cursor:     line %d, column %d (offset %d)\n", line+1, col+1, r.buf.Cursor())
	fmt.Printf("Suggestion: %s\n", r.session.State())
	fmt.Printf("Unsaved:    %v\n", r.saver.Pending())
}

func (r *REPL) cmdWait() {
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		state := r.session.State()
		if state != suggestion.Debouncing && state != suggestion.AwaitingResponse {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}
	if g, ok := r.session.Ghost(); ok {
		fmt.Printf("Suggestion: %q\n", g.Text)
	} else {
		fmt.Println("No suggestion")
	}
}

func intArg(args []string, i, def int) int {
	if i >= len(args) {
		return def
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return def
	}
	return n
}

func unescape(s string) string {
	return strings.NewReplacer(`\n`, "\n", `\t`, "\t").Replace(s)
}
