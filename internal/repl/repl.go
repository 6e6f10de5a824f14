package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"semsearch/internal/session"
)

const maxLineBytes = 1024 * 1024

// Run reads queries line by line until ctx is cancelled or input ends. Each
// line is handled by the session and the reply is written to out.
func Run(ctx context.Context, s *session.Session, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSuffix(sc.Text(), "\r"):
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	for {
		fmt.Fprint(out, s.Prompt())
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nProgram terminated.")
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out, "\nProgram terminated.")
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			render(out, s.Handle(ctx, line))
		}
	}
}

func render(out io.Writer, r session.Reply) {
	switch r.Kind {
	case session.ReplyToggled:
		// the prompt shows the new mode
	case session.ReplyAnswer, session.ReplyAdvisory, session.ReplyError:
		fmt.Fprintln(out, r.Text)
	}
}
