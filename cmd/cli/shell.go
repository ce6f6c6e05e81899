package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/viper"

	"pubcat/internal/search"
)

func runShell(ctx context.Context, out io.Writer, size int) error {
	c, err := search.Dial(viper.GetString("gateway.grpc"))
	if err != nil {
		return err
	}
	defer c.Close()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(s string) []string {
		var hits []string
		for _, w := range []string{"show ", "exit", "quit", "title:", "author:", "year:", "kind=", "journal:"} {
			if strings.HasPrefix(w, strings.ToLower(s)) {
				hits = append(hits, w)
			}
		}
		return hits
	})

	history := viper.GetString("cli.history")
	if f, err := os.Open(history); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(history); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(out, "Pubcat Interactive Shell")
	for {
		input, err := line.Prompt("pubcat> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		switch {
		case input == "exit" || input == "quit":
			return nil
		case strings.HasPrefix(input, "show "):
			err = runShow(ctx, c, out, strings.TrimSpace(strings.TrimPrefix(input, "show ")))
		default:
			err = runSearch(ctx, c, out, input, 0, size)
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}
