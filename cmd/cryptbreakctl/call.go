package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/RowanDark/cryptbreak/internal/tools"
)

func (c *cli) runList(ctx context.Context, args []string) int {
	if len(args) > 0 {
		fmt.Fprintln(c.stderr, "list takes no arguments")
		return 2
	}
	b, err := c.connect(false)
	if err != nil {
		fmt.Fprintf(c.stderr, "connect: %v\n", err)
		return 1
	}
	defer b.Close()

	infos, err := b.List(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "list tools: %v\n", err)
		return 1
	}
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	for _, info := range infos {
		names := make([]string, 0, len(info.Params))
		for _, p := range info.Params {
			name := p.Name
			if !p.Required {
				name += "?"
			}
			names = append(names, name)
		}
		fmt.Fprintf(tw, "%s\t(%s)\t%s\n", info.Name, strings.Join(names, ", "), info.Description)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(c.stderr, "write: %v\n", err)
		return 1
	}
	return 0
}

func (c *cli) runCall(ctx context.Context, args []string) int {
	if len(args) == 0 || len(args) > 2 {
		fmt.Fprintln(c.stderr, "usage: cryptbreakctl call <tool> [params]")
		return 2
	}
	tool := args[0]
	source := "{}"
	if len(args) == 2 {
		source = args[1]
	}
	params, err := c.readParams(source)
	if err != nil {
		fmt.Fprintf(c.stderr, "read params: %v\n", err)
		return 2
	}
	return c.invoke(ctx, tool, params, source != "-")
}

func (c *cli) runCache(ctx context.Context, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(c.stderr, "usage: cryptbreakctl cache stats|clear")
		return 2
	}
	switch args[0] {
	case "stats":
		return c.invoke(ctx, "cache_stats", nil, false)
	case "clear":
		return c.invoke(ctx, "cache_clear", nil, false)
	default:
		fmt.Fprintf(c.stderr, "unknown cache subcommand: %s\n", args[0])
		return 2
	}
}

func (c *cli) invoke(ctx context.Context, tool string, params []byte, allowPrompt bool) int {
	b, err := c.connect(allowPrompt)
	if err != nil {
		fmt.Fprintf(c.stderr, "connect: %v\n", err)
		return 1
	}
	defer b.Close()

	res, err := b.Invoke(ctx, tool, params)
	if err != nil {
		fmt.Fprintf(c.stderr, "%s failed: %s\n", tool, describe(err))
		return exitCode(err)
	}
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(c.stderr, "encode result: %v\n", err)
		return 1
	}
	return 0
}

// readParams resolves a literal JSON object, @path or - for stdin.
func (c *cli) readParams(source string) ([]byte, error) {
	var data []byte
	switch {
	case source == "-":
		b, err := io.ReadAll(c.stdin)
		if err != nil {
			return nil, err
		}
		data = b
	case strings.HasPrefix(source, "@"):
		b, err := os.ReadFile(strings.TrimPrefix(source, "@"))
		if err != nil {
			return nil, err
		}
		data = b
	default:
		data = []byte(source)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return []byte("{}"), nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, errors.New("params must be a JSON object")
	}
	return data, nil
}

func describe(err error) string {
	if st, ok := status.FromError(err); ok && st.Code() != codes.OK {
		return fmt.Sprintf("%s (%s)", st.Message(), st.Code())
	}
	if class := tools.ErrorClass(err); class != "" {
		return fmt.Sprintf("%v (%s)", err, class)
	}
	return err.Error()
}

// exitCode is 2 for caller mistakes and 1 for everything else.
func exitCode(err error) int {
	if _, ok := status.FromError(err); ok {
		switch status.Code(err) {
		case codes.NotFound, codes.InvalidArgument, codes.FailedPrecondition:
			return 2
		}
		return 1
	}
	switch tools.ErrorClass(err) {
	case "unknown_tool", "invalid_params", "decode":
		return 2
	}
	return 1
}
