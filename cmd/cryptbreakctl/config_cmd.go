package main

import (
	"fmt"
	"io"

	"github.com/RowanDark/cryptbreak/internal/config"
)

func (c *cli) runConfig(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, "config subcommand required")
		return 2
	}

	switch args[0] {
	case "print":
		if err := printResolvedConfig(c.stdout, c.cfg); err != nil {
			fmt.Fprintf(c.stderr, "print config: %v\n", err)
			return 1
		}
		return 0
	default:
		fmt.Fprintf(c.stderr, "unknown config subcommand: %s\n", args[0])
		return 2
	}
}

// printResolvedConfig writes cfg as YAML with secrets masked.
func printResolvedConfig(out io.Writer, cfg config.Config) error {
	data, err := cfg.Redacted().YAML()
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}
