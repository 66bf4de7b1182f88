package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-vault/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalogue statistics",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.SchemaVersion()
	if err != nil {
		return err
	}

	assets, err := db.CountAssets()
	if err != nil {
		return err
	}

	totalBytes, err := db.TotalAssetBytes()
	if err != nil {
		return err
	}

	edges, err := db.CountEdges()
	if err != nil {
		return err
	}

	byContext, err := db.CountEdgesByContext()
	if err != nil {
		return err
	}

	fmt.Printf("Schema version: %d\n", version)
	fmt.Printf("Assets:         %d (%s)\n", assets, humanize.Bytes(uint64(totalBytes)))
	fmt.Printf("Usage edges:    %d\n", edges)

	if len(byContext) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CONTEXT\tEDGES")
		for _, c := range store.Contexts {
			if n, ok := byContext[c]; ok {
				fmt.Fprintf(w, "%s\t%d\n", c, n)
			}
		}
		w.Flush()
	}

	return nil
}
