// Package listener is the interactive terminal used by `taskpilot chat`.
// Async lines (mission results) print above the prompt without breaking
// what the user is typing.
package listener

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chzyer/readline"
)

type Listener struct {
	rl *readline.Instance

	mu        sync.Mutex
	holdAsync bool
	heldLines []string
}

func New(historyFile string) (*Listener, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile,
		InterruptPrompt: "",
		EOFPrompt:       "",
	})
	if err != nil {
		return nil, err
	}
	return &Listener{rl: rl}, nil
}

func (l *Listener) Close() error {
	if l.rl == nil {
		return nil
	}
	return l.rl.Close()
}

func (l *Listener) SetPrompt(p string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rl.SetPrompt(p)
}

// GetInput returns the next trimmed line; ok is false on EOF or Ctrl+C.
func (l *Listener) GetInput() (string, bool) {
	line, err := l.rl.Readline()
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(line), true
}

func (l *Listener) GetConfirmation(prompt string) string {
	l.mu.Lock()
	old := l.rl.Config.Prompt
	l.rl.SetPrompt(prompt)
	l.mu.Unlock()

	line, err := l.rl.Readline()
	if err != nil {
		line = ""
	}
	ans := strings.TrimSpace(strings.ToLower(line))

	l.mu.Lock()
	l.rl.SetPrompt(old)
	l.mu.Unlock()
	return ans
}

func (l *Listener) BeginInteractive() {
	l.mu.Lock()
	l.holdAsync = true
	l.mu.Unlock()
}

func (l *Listener) EndInteractive() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holdAsync = false
	for _, s := range l.heldLines {
		l.writeUnlocked(s)
	}
	l.heldLines = nil
}

func (l *Listener) PrintAbove(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writeUnlocked(s)
}

// AsyncPrintln prints s now, or after the current confirmation prompt.
func (l *Listener) AsyncPrintln(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holdAsync {
		l.heldLines = append(l.heldLines, s)
		return
	}
	l.writeUnlocked(s)
}

func (l *Listener) writeUnlocked(s string) {
	if l.rl == nil {
		fmt.Println(s)
		return
	}
	_, _ = l.rl.Write([]byte("\r\n" + s + "\r\n"))
	l.rl.Refresh()
}

// AskYesNo repeats the question until it gets a y/n answer. EOF counts as no.
func (l *Listener) AskYesNo(question string) bool {
	l.BeginInteractive()
	defer l.EndInteractive()

	l.PrintAbove(question + " [y/n]")
	for i := 0; ; i++ {
		ans := l.GetConfirmation("> ")
		switch ans {
		case "y", "yes":
			return true
		case "n", "no":
			return false
		case "":
			if i > 0 {
				return false
			}
		}
		l.PrintAbove("Please answer y/n.")
	}
}
