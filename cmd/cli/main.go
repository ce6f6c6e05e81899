package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc/metadata"

	"pubcat/internal/publication"
	"pubcat/internal/search"
	"pubcat/internal/shaping"
	"pubcat/internal/storage"
)

func init() {
	viper.SetConfigName("pubcat-cli")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.SetEnvPrefix("pubcat")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("gateway.grpc", "localhost:50051")
	viper.SetDefault("gateway.timeout", 5*time.Second)
	viper.SetDefault("cli.history", ".pubcat_history")
	_ = viper.ReadInConfig()
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var size int
	root := &cobra.Command{
		Use:          "pubcat-cli",
		Short:        "Query the publication catalog",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), out, size)
		},
	}
	root.PersistentFlags().String("gateway", "", "catalog gRPC address (host:port)")
	_ = viper.BindPFlag("gateway.grpc", root.PersistentFlags().Lookup("gateway"))
	root.PersistentFlags().IntVar(&size, "size", search.DefaultSize, "page size")

	var from int
	searchCmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search publications",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *search.Client) error {
				return runSearch(cmd.Context(), c, out, strings.Join(args, " "), from, size)
			})
		},
	}
	searchCmd.Flags().IntVar(&from, "from", 0, "offset of the first hit")

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one publication",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(c *search.Client) error {
				return runShow(cmd.Context(), c, out, args[0])
			})
		},
	}

	root.AddCommand(searchCmd, showCmd)
	return root
}

func withClient(fn func(*search.Client) error) error {
	c, err := search.Dial(viper.GetString("gateway.grpc"))
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// traced returns a context carrying a fresh trace id for the server logs.
func traced(ctx context.Context) (context.Context, context.CancelFunc, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	id := uuid.NewString()
	ctx = metadata.AppendToOutgoingContext(ctx, "x-trace-id", id)
	ctx, cancel := context.WithTimeout(ctx, viper.GetDuration("gateway.timeout"))
	return ctx, cancel, id
}

func runSearch(ctx context.Context, c search.Searcher, out io.Writer, query string, from, size int) error {
	ctx, cancel, trace := traced(ctx)
	defer cancel()

	start := time.Now()
	res, err := c.Search(ctx, query, from, size)
	if err != nil {
		if errors.Is(err, search.ErrBadQuery) {
			fmt.Fprintf(out, "Bad query: %v\n", err)
			return nil
		}
		return err
	}

	plan := res.Canonical
	if res.Relaxed {
		plan += " (relaxed)"
	}
	fmt.Fprintf(out, "\n[Plan]: %s\n[Trace]: %s\n", plan, trace)
	if err := shaping.ShapeText(out, res); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n⏱ took %v\n\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runShow(ctx context.Context, c search.Searcher, out io.Writer, id string) error {
	ctx, cancel, _ := traced(ctx)
	defer cancel()

	rec, err := c.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(out, "No publication with id %s\n", id)
		return nil
	}
	if err != nil {
		return err
	}
	p, err := publication.FromRecord(rec)
	if err != nil {
		return err
	}
	if err := publication.Show(out, p); err != nil {
		return err
	}
	if rec.Annotation != "" {
		fmt.Fprintf(out, "  %s\n", rec.Annotation)
	}
	if rec.Source.Filename != "" {
		fmt.Fprintf(out, "  source: %s/%s\n", rec.Source.Container, rec.Source.Filename)
	}
	return nil
}
