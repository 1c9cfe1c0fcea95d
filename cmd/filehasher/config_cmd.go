package main

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"filehasher/internal/config"
	"filehasher/internal/logging"
)

func handleConfig(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("config subcommand required: validate | print")
	}
	sub := args[0]
	switch sub {
	case "validate":
		return configOp("config validate", args[1:], func(c *config.Config, log *logging.Logger, _ string) error {
			if err := c.ValidateWithFriendlyErrors(); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "config: valid")
			return nil
		})
	case "print":
		return configOp("config print", args[1:], func(c *config.Config, log *logging.Logger, format string) error {
			if format == "json" {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(c)
			}
			enc := yaml.NewEncoder(stdout)
			enc.SetIndent(2)
			if err := enc.Encode(c); err != nil {
				return err
			}
			return enc.Close()
		})
	default:
		return fmt.Errorf("unknown config subcommand: %s", sub)
	}
}

func configOp(name string, args []string, fn func(*config.Config, *logging.Logger, string) error) error {
	fs, g := newFlagSet(name)
	format := fs.String("format", "yaml", "output format for print: yaml|json")
	if ok, err := parse(fs, args); !ok || err != nil {
		return err
	}
	if *format != "yaml" && *format != "json" {
		return fmt.Errorf("unknown --format %q (want yaml or json)", *format)
	}
	c, log, err := g.load()
	if err != nil {
		return err
	}
	return fn(c, log, *format)
}
