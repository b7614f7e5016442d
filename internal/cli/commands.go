package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	flag "github.com/spf13/pflag"

	"sidehustle-shop/internal/catalog"
	"sidehustle-shop/internal/checkout"
	"sidehustle-shop/internal/domain"
	"sidehustle-shop/internal/money"
)

func commandSet() map[string]*Command {
	cmds := []*Command{
		lsCmd(),
		addCmd(),
		qtyCmd(),
		rmCmd(),
		clearCmd(),
		totalCmd(),
		orderCmd(),
	}
	out := make(map[string]*Command, len(cmds))
	for _, c := range cmds {
		out[c.Name()] = c
	}
	return out
}

func lsCmd() *Command {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	product := fs.StringP("product", "p", "", "Only lines of this product")
	asJSON := fs.Bool("json", false, "Print the lines as JSON")

	return &Command{
		Flags: fs,
		Usage: "ls [--product=<id>] [--json]",
		Short: "List cart lines",
		NArgs: 0,
		Exec: func(ctx context.Context, e *env, _ []string) error {
			items := e.store.GetCart(ctx)
			if *product != "" {
				items = e.store.ItemsByProduct(ctx, *product)
			}
			if *asJSON {
				return printJSON(e.io, items)
			}
			if len(items) == 0 {
				e.io.Println("cart is empty")
				return nil
			}
			for _, it := range items {
				e.io.Printf("%-40s %3d x %9s = %10s  %s (%s)\n",
					it.ID, it.Quantity, money.Format(it.Price), money.Format(e.store.Subtotal(it)), it.Title, it.Describe())
			}
			return nil
		},
	}
}

func addCmd() *Command {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	option := fs.StringP("option", "o", "", "Purchase option id (default: first option)")
	sub := fs.String("sub", "", "Sub-option id (default: first of the option)")
	frame := fs.String("frame", "", "Frame color id (default: first of the option)")
	qty := fs.IntP("quantity", "q", 1, "Quantity to add")

	return &Command{
		Flags: fs,
		Usage: "add <product-id> [flags]",
		Short: "Add a product configuration to the cart",
		Long: "Add a product configuration to the cart. Adding the same configuration again\n" +
			"raises the quantity of the existing line.",
		NArgs: 1,
		Exec: func(ctx context.Context, e *env, args []string) error {
			if *qty < 1 {
				e.io.Warn("quantity %d is below 1, adding 1", *qty)
			}
			spec, err := e.catalog.Resolve(catalog.Selection{
				ProductID:  args[0],
				OptionID:   *option,
				SubOption:  *sub,
				FrameColor: *frame,
				Quantity:   *qty,
			})
			if err != nil {
				return err
			}
			item := e.store.AddItem(ctx, spec)
			e.io.Printf("added %s (quantity %d)\n", item.ID, item.Quantity)
			return nil
		},
	}
}

func qtyCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("qty", flag.ContinueOnError),
		Usage: "qty <line-id> <quantity>",
		Short: "Set the quantity of a line (0 removes it)",
		NArgs: 2,
		Exec: func(ctx context.Context, e *env, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a whole number, got %q", args[1])
			}
			if !hasLine(ctx, e, args[0]) {
				return fmt.Errorf("line %q: %w", args[0], domain.ErrNotFound)
			}
			item := e.store.UpdateQuantity(ctx, args[0], n)
			if item == nil {
				e.io.Printf("removed %s\n", args[0])
				return nil
			}
			e.io.Printf("%s quantity %d\n", item.ID, item.Quantity)
			return nil
		},
	}
}

func rmCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("rm", flag.ContinueOnError),
		Usage: "rm <line-id>",
		Short: "Remove a line from the cart",
		NArgs: 1,
		Exec: func(ctx context.Context, e *env, args []string) error {
			if !e.store.RemoveItem(ctx, args[0]) {
				return fmt.Errorf("line %q: %w", args[0], domain.ErrNotFound)
			}
			e.io.Printf("removed %s\n", args[0])
			return nil
		},
	}
}

func clearCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("clear", flag.ContinueOnError),
		Usage: "clear",
		Short: "Empty the cart",
		NArgs: 0,
		Exec: func(ctx context.Context, e *env, _ []string) error {
			e.store.ClearCart(ctx)
			e.io.Println("cart cleared")
			return nil
		},
	}
}

func totalCmd() *Command {
	return &Command{
		Flags: flag.NewFlagSet("total", flag.ContinueOnError),
		Usage: "total",
		Short: "Print item counts and the cart total",
		NArgs: 0,
		Exec: func(ctx context.Context, e *env, _ []string) error {
			sum := e.store.Summary(ctx)
			e.io.Printf("items: %d (%d unique)\n", sum.Count, sum.UniqueCount)
			e.io.Printf("total: %s\n", money.Format(sum.Total))
			return nil
		},
	}
}

func orderCmd() *Command {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	currency := fs.String("currency", checkout.DefaultCurrency, "Currency code")
	brand := fs.String("brand", "", "Brand name shown by the payment provider")

	return &Command{
		Flags: fs,
		Usage: "order [--currency=USD] [--brand=<name>]",
		Short: "Print the payment order the cart would produce",
		NArgs: 0,
		Exec: func(ctx context.Context, e *env, _ []string) error {
			sum := e.store.Summary(ctx)
			if len(sum.Items) == 0 {
				return domain.ErrEmptyCart
			}
			name := *brand
			if name == "" {
				name = e.brand
			}
			return printJSON(e.io, checkout.NewOrderRequest(sum.Items, sum.Total, *currency, name))
		},
	}
}

func hasLine(ctx context.Context, e *env, id string) bool {
	for _, it := range e.store.GetCart(ctx) {
		if it.ID == id {
			return true
		}
	}
	return false
}

func printJSON(o *IO, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	o.Println(string(data))
	return nil
}
