package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/Iron-Ham/pagebook/internal/errors"
)

// ReadSecretFunc reads one credential after showing prompt.
type ReadSecretFunc func(prompt string) (string, error)

// TerminalReader reads credentials from in without echo when in is a
// terminal, and line by line otherwise (for piped input).
func TerminalReader(in *os.File, out io.Writer) ReadSecretFunc {
	if term.IsTerminal(int(in.Fd())) {
		return func(prompt string) (string, error) {
			fmt.Fprint(out, prompt)
			secret, err := term.ReadPassword(int(in.Fd()))
			fmt.Fprintln(out)
			if err != nil {
				return "", errors.Wrap(err, "read token")
			}
			return string(secret), nil
		}
	}
	return LineReader(in, out)
}

// LineReader reads one line per credential from r.
func LineReader(r io.Reader, out io.Writer) ReadSecretFunc {
	scanner := bufio.NewScanner(r)
	return func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", errors.Wrap(err, "read token")
			}
			return "", io.EOF
		}
		return strings.TrimRight(scanner.Text(), "\r"), nil
	}
}

// Admit prompts until g admits a credential, read fails, or maxAttempts
// credentials have been rejected. A maxAttempts of zero or less retries
// until read fails.
func Admit(g *Gate, read ReadSecretFunc, maxAttempts int) error {
	if g.Admitted() {
		return nil
	}

	var lastErr error
	for attempt := 1; maxAttempts <= 0 || attempt <= maxAttempts; attempt++ {
		prompt := "Token: "
		if attempt > 1 {
			prompt = "Invalid token, try again: "
		}

		credential, err := read(prompt)
		if err != nil {
			if lastErr != nil {
				return errors.Join(lastErr, err)
			}
			return errors.NewAuthError("no token provided", errors.Join(errors.ErrAuthFailed, err)).WithSessionID(g.SessionID())
		}

		ok, err := g.Authenticate(credential)
		if ok {
			return nil
		}
		if errors.Is(err, errors.ErrSessionClosed) {
			return err
		}
		lastErr = err
	}
	return lastErr
}
