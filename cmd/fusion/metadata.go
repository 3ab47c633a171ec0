package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var metadataCmd = &cobra.Command{
	Use:   "metadata <embeddings>",
	Short: "Print embeddings metadata",
	Long:  "Print the TOML metadata stored in a finalfusion file, or a single value with --get.",
	Args:  cobra.ExactArgs(1),
	RunE:  runMetadata,
}

var metadataKey string

func init() {
	rootCmd.AddCommand(metadataCmd)
	metadataCmd.Flags().StringVar(&metadataKey, "get", "", "Dotted key to print, e.g. model.dims")
}

func runMetadata(cmd *cobra.Command, args []string) error {
	m, err := openModel(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	defer m.Close()

	md := m.Metadata()
	if md == nil {
		return fmt.Errorf("%s: no metadata", args[0])
	}
	if metadataKey != "" {
		v, ok := md.Get(metadataKey)
		if !ok {
			return fmt.Errorf("%s: no metadata key %q", args[0], metadataKey)
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), v)
		return err
	}

	b, err := md.Bytes()
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(b)
	return err
}
