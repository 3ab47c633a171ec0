package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fusion"
	"github.com/hupe1980/fusion/codec"
)

var quantizeCmd = &cobra.Command{
	Use:   "quantize <input> <output>",
	Short: "Product-quantize embeddings",
	Long: `Train a product quantizer on the embedding matrix and write the
quantized embeddings in finalfusion format. Defaults come from the quantize
section of the config file.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuantize,
}

var (
	quantizeFrom         string
	quantizeSubspaces    int
	quantizeCodebookSize int
	quantizeIterations   int
	quantizeAttempts     int
	quantizeNormalize    bool
	quantizeSeed         int64
)

func init() {
	rootCmd.AddCommand(quantizeCmd)

	f := quantizeCmd.Flags()
	f.StringVarP(&quantizeFrom, "from", "f", "", "Input format (default: from file name)")
	f.IntVarP(&quantizeSubspaces, "subspaces", "s", 0, "Number of subspaces")
	f.IntVarP(&quantizeCodebookSize, "codebook-size", "c", 0, "Centroids per subspace (1..256)")
	f.IntVarP(&quantizeIterations, "iterations", "i", 0, "Maximum k-means iterations")
	f.IntVarP(&quantizeAttempts, "attempts", "a", 0, "k-means runs per subspace")
	f.BoolVarP(&quantizeNormalize, "normalize", "n", false, "Train on unit-length embeddings and store norms")
	f.Int64Var(&quantizeSeed, "seed", 0, "Random seed")
}

func runQuantize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg := globalConfig.QuantizationConfig()
	flags := cmd.Flags()
	if flags.Changed("subspaces") {
		cfg.Subspaces = quantizeSubspaces
	}
	if flags.Changed("codebook-size") {
		cfg.CodebookSize = quantizeCodebookSize
	}
	if flags.Changed("iterations") {
		cfg.Iterations = quantizeIterations
	}
	if flags.Changed("attempts") {
		cfg.Attempts = quantizeAttempts
	}
	if flags.Changed("normalize") {
		cfg.Normalize = quantizeNormalize
	}
	if flags.Changed("seed") {
		cfg.Seed = quantizeSeed
	}

	opts, err := formatOption(quantizeFrom)
	if err != nil {
		return err
	}
	m, err := openModel(ctx, args[0], opts...)
	if err != nil {
		return err
	}
	defer m.Close()

	q, report, err := m.Quantize(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "quantized %d subspaces, reconstruction bound %.4f\n",
		len(report.Subspaces), report.ReconstructionBound())

	return saveModel(ctx, q, args[1], fusion.WithFormat(codec.FormatFinalfusion))
}
