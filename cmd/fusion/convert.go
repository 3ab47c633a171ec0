package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/fusion"
	"github.com/hupe1980/fusion/codec"
	"github.com/hupe1980/fusion/metadata"
)

var convertCmd = &cobra.Command{
	Use:   "convert <input> <output>",
	Short: "Convert embeddings between formats",
	Long: `Convert embeddings between finalfusion, word2vec, text and textdims.
fastText models (.bin) can be used as input.

Stream formats may be compressed with zstd or lz4; compressed input is
detected automatically.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

// Flags
var (
	convertFrom      string
	convertTo        string
	convertCompress  string
	convertNormalize bool
	convertMetadata  string
)

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertFrom, "from", "f", "", "Input format (default: from file name)")
	convertCmd.Flags().StringVarP(&convertTo, "to", "t", "", "Output format (default: from file name)")
	convertCmd.Flags().StringVar(&convertCompress, "compress", "", "Output compression: none, zstd or lz4 (default: from file name)")
	convertCmd.Flags().BoolVarP(&convertNormalize, "normalize", "n", false, "Normalize embeddings and store their norms")
	convertCmd.Flags().StringVar(&convertMetadata, "metadata", "", "TOML file to store as metadata")
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	openOpts, err := formatOption(convertFrom)
	if err != nil {
		return err
	}
	openOpts = append(openOpts, fusion.WithNormalize(convertNormalize))

	m, err := openModel(ctx, args[0], openOpts...)
	if err != nil {
		return err
	}
	defer m.Close()

	if convertMetadata != "" {
		data, err := os.ReadFile(convertMetadata)
		if err != nil {
			return fmt.Errorf("read metadata: %w", err)
		}
		md, err := metadata.Parse(data)
		if err != nil {
			return err
		}
		m.SetMetadata(md)
	}

	saveOpts, err := formatOption(convertTo)
	if err != nil {
		return err
	}
	if convertCompress != "" {
		c, err := codec.ParseCompression(convertCompress)
		if err != nil {
			return err
		}
		saveOpts = append(saveOpts, fusion.WithCompression(c))
	}
	return saveModel(ctx, m, args[1], saveOpts...)
}

// formatOption returns a WithFormat option for a non-empty format name.
func formatOption(name string) ([]fusion.Option, error) {
	if name == "" {
		return nil, nil
	}
	f, err := codec.ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return []fusion.Option{fusion.WithFormat(f)}, nil
}
