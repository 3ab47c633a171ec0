package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fusion"
	"github.com/hupe1980/fusion/model"
)

var similarCmd = &cobra.Command{
	Use:   "similar <embeddings> [word...]",
	Short: "Find words with similar embeddings",
	Long:  "Print the nearest neighbours of each word. Words are read from stdin, one per line, when none are given.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSimilar,
}

var analogyCmd = &cobra.Command{
	Use:   "analogy <embeddings> [a a* b]",
	Short: "Answer analogy queries",
	Long:  `Answer "a is to a* as b is to ?". Queries are read from stdin, three words per line, when none are given.`,
	Args:  cobra.MatchAll(cobra.MinimumNArgs(1), oneOrFourArgs),
	RunE:  runAnalogy,
}

// Flags
var (
	neighbours int
	queryFrom  string
)

func init() {
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(analogyCmd)

	for _, c := range []*cobra.Command{similarCmd, analogyCmd} {
		c.Flags().IntVarP(&neighbours, "neighbors", "k", 10, "Number of neighbours to print")
		c.Flags().StringVarP(&queryFrom, "from", "f", "", "Embeddings format (default: from file name)")
	}
}

func oneOrFourArgs(_ *cobra.Command, args []string) error {
	if len(args) != 1 && len(args) != 4 {
		return fmt.Errorf("expected an embeddings file and optionally three words, got %d arguments", len(args))
	}
	return nil
}

func runSimilar(cmd *cobra.Command, args []string) error {
	opts, err := formatOption(queryFrom)
	if err != nil {
		return err
	}
	m, err := openModel(cmd.Context(), args[0], opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	return forEachQuery(cmd, args[1:], 1, func(words []string) error {
		results, err := m.SearchWord(words[0]).KNN(neighbours).Execute(cmd.Context())
		if err != nil {
			return err
		}
		return printResults(cmd.OutOrStdout(), results)
	})
}

func runAnalogy(cmd *cobra.Command, args []string) error {
	opts, err := formatOption(queryFrom)
	if err != nil {
		return err
	}
	m, err := openModel(cmd.Context(), args[0], opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	var queries []string
	if len(args) == 4 {
		queries = []string{strings.Join(args[1:], " ")}
	}
	return forEachQuery(cmd, queries, 3, func(words []string) error {
		results, err := m.Analogy(words[0], words[1], words[2]).KNN(neighbours).Execute(cmd.Context())
		if err != nil {
			return err
		}
		return printResults(cmd.OutOrStdout(), results)
	})
}

// forEachQuery runs fn on every query from args, or on stdin lines when
// args is empty. Unknown words are reported and skipped.
func forEachQuery(cmd *cobra.Command, args []string, arity int, fn func([]string) error) error {
	run := func(line string) error {
		words := strings.Fields(line)
		if len(words) == 0 {
			return nil
		}
		if len(words) != arity {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipping %q: expected %d words\n", line, arity)
			return nil
		}
		err := fn(words)
		var le *model.LookupError
		if errors.As(err, &le) {
			fmt.Fprintf(cmd.ErrOrStderr(), "unknown: %s\n", strings.Join(le.Words, " "))
			return nil
		}
		if errors.Is(err, fusion.ErrInvalidK) {
			return fmt.Errorf("--neighbors: %w", err)
		}
		return err
	}

	if len(args) > 0 {
		for _, a := range args {
			if err := run(a); err != nil {
				return err
			}
		}
		return nil
	}

	sc := bufio.NewScanner(cmd.InOrStdin())
	for sc.Scan() {
		if err := run(sc.Text()); err != nil {
			return err
		}
	}
	return sc.Err()
}

func printResults(w io.Writer, results []model.WordSimilarity) error {
	for _, r := range results {
		if _, err := fmt.Fprintf(w, "%s\t%.4f\n", r.Word, r.Similarity); err != nil {
			return err
		}
	}
	return nil
}
