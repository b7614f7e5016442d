package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command defines a CLI command with unified help generation.
type Command struct {
	Flags *flag.FlagSet

	// Usage is shown after "cartctl" in help, e.g. "qty <id> <n>".
	Usage string

	Short string
	Long  string

	// NArgs is the exact number of positional arguments, or -1 for any.
	NArgs int

	Exec func(ctx context.Context, e *env, args []string) error
}

// Name returns the command name (first word of Usage).
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")
	return name
}

func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-34s %s", c.Usage, c.Short)
}

func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage: cartctl [global flags]", c.Usage)
	o.Println()

	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Println(desc)

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")

		var buf strings.Builder
		c.Flags.SetOutput(&buf)
		c.Flags.PrintDefaults()
		o.Printf("%s", buf.String())
	}
}

// Run parses flags and executes the command. Returns exit code.
func (c *Command) Run(ctx context.Context, e *env, args []string) int {
	if c.Flags == nil {
		c.Flags = flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	}
	c.Flags.SetOutput(&strings.Builder{})

	err := c.Flags.Parse(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(e.io)
			return 0
		}
		e.io.ErrPrintln("error:", err)
		return 1
	}

	rest := c.Flags.Args()
	if c.NArgs >= 0 && len(rest) != c.NArgs {
		e.io.ErrPrintln(fmt.Sprintf("error: %s expects %d argument(s), got %d", c.Name(), c.NArgs, len(rest)))
		e.io.ErrPrintln("usage: cartctl", c.Usage)
		return 1
	}

	if err := c.Exec(ctx, e, rest); err != nil {
		e.io.ErrPrintln("error:", err)
		return 1
	}

	return e.io.Finish()
}
