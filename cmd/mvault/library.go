package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-vault/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "List a subject's media library",
	Long: `List the assets a subject has referenced, newest first. Derivative
crops are hidden (originals only), each content hash appears once, and
automated avatar/cover registrations are hidden when the subject also
holds a primary-source reference to the same asset.`,
	RunE: runLibrary,
}

func init() {
	rootCmd.AddCommand(libraryCmd)

	libraryCmd.Flags().StringP("subject", "s", "", "subject id (required)")
	viper.BindPFlag("subject", libraryCmd.Flags().Lookup("subject"))
}

func runLibrary(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	subject := viper.GetString("subject")
	if subject == "" {
		return fmt.Errorf("subject is required (use --subject/-s or set in config)")
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := db.ListLibrary(subject)
	if err != nil {
		return fmt.Errorf("failed to list library: %w", err)
	}

	if len(entries) == 0 {
		util.InfoLog("Library for %s is empty", subject)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tHASH\tCONTEXT\tSIZE\tDIMENSIONS\tCREATED")
	for _, e := range entries {
		dims := "-"
		if e.Asset.Width > 0 {
			dims = fmt.Sprintf("%dx%d", e.Asset.Width, e.Asset.Height)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			e.Asset.ID,
			e.Asset.Hash[:12],
			e.Edge.Context,
			humanize.Bytes(uint64(e.Asset.SizeBytes)),
			dims,
			e.Edge.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	w.Flush()

	util.InfoLog("%d assets in library", len(entries))
	return nil
}
