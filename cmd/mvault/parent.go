package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-vault/internal/util"
	"github.com/spf13/cobra"
)

var parentCmd = &cobra.Command{
	Use:   "parent <asset-id>",
	Short: "Show the original an asset was derived from",
	Long: `Resolve one level of lineage: the original upload a derivative (crop)
was produced from. Lets a caller re-crop from the source rather than the
derivative.`,
	Args: cobra.ExactArgs(1),
	RunE: runParent,
}

func init() {
	rootCmd.AddCommand(parentCmd)
}

func runParent(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	assetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid asset id %q", args[0])
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	parent, err := db.FindParent(assetID)
	if err != nil {
		return err
	}

	if parent == nil {
		util.InfoLog("Asset %d is a top-level original (no parent)", assetID)
		return nil
	}

	fmt.Printf("Asset:    %d\n", parent.ID)
	fmt.Printf("Hash:     %s\n", parent.Hash)
	fmt.Printf("URL:      %s\n", parent.URL)
	fmt.Printf("Mime:     %s\n", parent.MimeType)
	fmt.Printf("Size:     %s\n", humanize.Bytes(uint64(parent.SizeBytes)))
	if parent.Width > 0 {
		fmt.Printf("Size px:  %dx%d\n", parent.Width, parent.Height)
	}
	fmt.Printf("Created:  %s\n", parent.CreatedAt.Format("2006-01-02 15:04:05"))

	return nil
}
