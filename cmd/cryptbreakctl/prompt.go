package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/RowanDark/cryptbreak/internal/symmetric"
)

// promptProvider asks for missing decryption parameters on a terminal. A
// blank key declines the request.
type promptProvider struct {
	mu  sync.Mutex
	in  io.Reader
	out io.Writer

	start sync.Once
	lines chan lineResult
}

func newPromptProvider(in io.Reader, out io.Writer) *promptProvider {
	return &promptProvider{in: in, out: out, lines: make(chan lineResult)}
}

func (p *promptProvider) Provide(ctx context.Context, req symmetric.Request) (symmetric.Params, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "%s (blank key declines)\n", req.Message)
	answers := make(map[string]string, len(req.Fields))
	for _, field := range req.Fields {
		fmt.Fprintf(p.out, "  %s: ", field)
		line, err := p.readLine(ctx)
		if err != nil {
			fmt.Fprintln(p.out)
			return symmetric.Params{}, false
		}
		if field == "key" && line == "" {
			return symmetric.Params{}, false
		}
		answers[field] = line
	}
	return symmetric.Params{
		Key:         answers["key"],
		KeyEncoding: answers["key_encoding"],
		IV:          answers["iv"],
		IVEncoding:  answers["iv_encoding"],
		Mode:        answers["mode"],
	}, true
}

type lineResult struct {
	line string
	err  error
}

// readLines is the only reader of p.in. A line typed after a prompt timed
// out is delivered to the next prompt.
func (p *promptProvider) readLines() {
	defer close(p.lines)
	br := bufio.NewReader(p.in)
	for {
		line, err := br.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		p.lines <- lineResult{strings.TrimSpace(line), err}
		if err != nil {
			return
		}
	}
}

func (p *promptProvider) readLine(ctx context.Context) (string, error) {
	p.start.Do(func() { go p.readLines() })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	}
}
