package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (a *app) reader() *bufio.Reader {
	if r, ok := a.in.(*bufio.Reader); ok {
		return r
	}
	r := bufio.NewReader(a.in)
	a.in = r
	return r
}

func (a *app) promptInput(w io.Writer, prompt string) string {
	fmt.Fprint(w, prompt)
	input, _ := a.reader().ReadString('\n')
	return strings.TrimSpace(input)
}

// promptSecret reads without echo on a terminal, and a plain line otherwise.
func (a *app) promptSecret(w io.Writer, prompt string) string {
	if !a.isTTY() {
		return a.promptInput(w, prompt)
	}
	fmt.Fprint(w, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return ""
	}
	return string(secret)
}

func (a *app) confirm(w io.Writer, prompt string) bool {
	answer := strings.ToLower(a.promptInput(w, prompt+" [y/N]: "))
	return answer == "y" || answer == "yes"
}
