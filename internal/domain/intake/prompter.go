package intake

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Prompter shows a label to the operator and returns the line they typed,
// without the trailing newline. It returns ErrInputClosed once no more input
// can arrive, and ctx.Err() if ctx ends first.
type Prompter interface {
	Prompt(ctx context.Context, label string) (string, error)
}

type readResult struct {
	line string
	err  error
}

// ConsolePrompter reads operator input line by line from a terminal or any
// other reader. Reads happen on a background goroutine so a pending prompt
// can be abandoned when ctx is cancelled; a line typed after that is lost.
type ConsolePrompter struct {
	in    *bufio.Reader
	out   io.Writer
	once  sync.Once
	lines chan readResult
}

// NewConsolePrompter creates a prompter that writes labels to out and reads
// answers from in.
func NewConsolePrompter(in io.Reader, out io.Writer) *ConsolePrompter {
	return &ConsolePrompter{
		in:    bufio.NewReader(in),
		out:   out,
		lines: make(chan readResult),
	}
}

func (p *ConsolePrompter) Prompt(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, label)
	p.once.Do(func() { go p.readLines() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-p.lines:
		if !ok {
			return "", ErrInputClosed
		}
		return r.line, r.err
	}
}

// readLines feeds p.lines until the reader is exhausted, then closes it.
func (p *ConsolePrompter) readLines() {
	defer close(p.lines)
	for {
		line, err := p.in.ReadString('\n')
		switch {
		case err == nil:
			p.lines <- readResult{line: strings.TrimRight(line, "\r\n")}
		case errors.Is(err, io.EOF):
			if line != "" {
				p.lines <- readResult{line: strings.TrimRight(line, "\r")}
			}
			return
		default:
			p.lines <- readResult{err: fmt.Errorf("read operator input: %w", err)}
			return
		}
	}
}
