package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"golang.org/x/term"
)

var errInterrupted = errors.New("input interrupted")

// terminalFd returns the descriptor behind r when r is an interactive terminal.
func terminalFd(r io.Reader) (int, bool) {
	f, ok := r.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// ReadPassword reads a line from the terminal without echo.
func ReadPassword(fd int, out io.Writer, prompt string) ([]byte, error) {
	fmt.Fprint(out, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(out)

	return pw, err
}

// ReadPasswordMasked reads a line in raw mode, echoing one '*' per character.
func ReadPasswordMasked(fd int, in io.Reader, out io.Writer, prompt string) ([]byte, error) {
	fmt.Fprint(out, prompt)
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, errors.Wrap(err, "enter raw mode")
	}
	defer term.Restore(fd, state)
	return readMasked(in, out)
}

func readMasked(in io.Reader, out io.Writer) ([]byte, error) {
	var input []byte
	var buf [1]byte
	for {
		if _, err := in.Read(buf[:]); err != nil {
			fmt.Fprint(out, "\r\n")
			if err == io.EOF {
				return input, nil
			}
			return nil, err
		}
		c := buf[0]

		switch c {
		case 13, 10: // Enter
			fmt.Fprint(out, "\r\n")
			return input, nil
		case 3: // Ctrl-C
			fmt.Fprint(out, "\r\n")
			clear(input)
			return nil, errInterrupted
		case 127, 8: // Backspace
			if len(input) > 0 {
				_, size := utf8.DecodeLastRune(input)
				clear(input[len(input)-size:])
				input = input[:len(input)-size]
				fmt.Fprint(out, "\b \b")
			}
		default:
			input = append(input, c)
			// one star per rune, not per byte
			if utf8.RuneStart(c) {
				fmt.Fprint(out, "*")
			}
		}
	}
}

// takeSecret copies b into a string and wipes b.
func takeSecret(b []byte) string {
	s := string(b)
	clear(b)
	return s
}

// readLine reads one line and strips the line terminator.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ClearScreen wipes the terminal behind out.
func ClearScreen(out io.Writer) {
	termenv.NewOutput(out).ClearScreen()
}

// waitEnterOrTimeout returns when a line arrives on in, in is exhausted, or d
// elapses, whichever comes first. On timeout the goroutine stays blocked on
// in, so nothing may read from in afterwards.
func waitEnterOrTimeout(in *bufio.Reader, d time.Duration) {
	done := make(chan struct{})
	go func() {
		_, _ = in.ReadString('\n')
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
	}
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
