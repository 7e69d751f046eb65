package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/apsdiag/internal/engine/testdata"
)

var (
	genRows      int
	genSeed      int64
	genBinary    bool
	genUnlabeled bool
	genOut       string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Write a synthetic APS batch as CSV",
	Long: `Writes a deterministic synthetic batch with the APS column layout:
sensor columns followed by a "class" label. About 20% of the samples carry
one of three fault signatures. Useful for trying the other commands without
real fleet data.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		batch := testdata.Generate(genRows, genSeed)
		if genBinary {
			batch = testdata.GenerateBinary(genRows, genSeed)
		}
		if genUnlabeled {
			batch = testdata.Unlabeled(batch)
		}

		var w io.Writer = cmd.OutOrStdout()
		if genOut != "" && genOut != "-" {
			f, err := os.Create(genOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", genOut, err)
			}
			defer f.Close()
			bw := bufio.NewWriter(f)
			defer bw.Flush()
			w = bw
		}
		if err := testdata.WriteCSV(w, batch); err != nil {
			return err
		}
		logger.Info("batch generated", "rows", len(batch.Rows), "columns", len(batch.Header))
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.IntVarP(&genRows, "rows", "n", 1000, "number of samples")
	f.Int64Var(&genSeed, "seed", 42, "random seed")
	f.BoolVar(&genBinary, "binary", false, "only neg/pos classes")
	f.BoolVar(&genUnlabeled, "unlabeled", false, "omit the class column")
	f.StringVarP(&genOut, "file", "f", "", "write to this file instead of stdout")
}
