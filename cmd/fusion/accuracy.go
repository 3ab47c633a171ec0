package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fusion/eval"
)

var accuracyCmd = &cobra.Command{
	Use:   "accuracy <embeddings> <analogies>",
	Short: "Evaluate embeddings on an analogy file",
	Long: `Evaluate embeddings on analogy questions in the word2vec
questions-words format. Lines starting with ':' begin a section.`,
	Args: cobra.ExactArgs(2),
	RunE: runAccuracy,
}

var (
	accuracyFrom    string
	accuracyVerbose bool
)

func init() {
	rootCmd.AddCommand(accuracyCmd)

	accuracyCmd.Flags().StringVarP(&accuracyFrom, "from", "f", "", "Embeddings format (default: from file name)")
	accuracyCmd.Flags().BoolVarP(&accuracyVerbose, "verbose", "v", false, "Print every prediction")
}

func runAccuracy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	opts, err := formatOption(accuracyFrom)
	if err != nil {
		return err
	}
	m, err := openModel(ctx, args[0], opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := m.Evaluate(ctx, f)
	if err != nil {
		return err
	}
	return printReport(cmd, report)
}

func printReport(cmd *cobra.Command, report *eval.Report) error {
	out := cmd.OutOrStdout()

	if accuracyVerbose {
		for _, p := range report.Predictions {
			switch {
			case p.Skipped:
				fmt.Fprintf(out, "%s %s %s %s: skipped\n", p.A, p.AStar, p.B, p.BStar)
			case p.Missing != nil:
				fmt.Fprintf(out, "%s %s %s %s: missing %v\n", p.A, p.AStar, p.B, p.BStar, p.Missing)
			default:
				fmt.Fprintf(out, "%s %s %s %s: %s (%t)\n", p.A, p.AStar, p.B, p.BStar, p.Predicted, p.Correct)
			}
		}
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SECTION\tCORRECT\tTOTAL\tACCURACY\tSKIPPED\tAVG COSINE")
	for _, s := range report.Sections {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f%%\t%d\t%.4f\n",
			s.Name, s.Correct, s.Total, 100*s.Accuracy(), s.Skipped, s.AvgCosine)
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t%.2f%%\t%d\t\n",
		report.Correct, report.Total, 100*report.Accuracy(), report.Skipped)
	return tw.Flush()
}
