package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/franz/media-vault/internal/pipeline"
	"github.com/franz/media-vault/internal/store"
	"github.com/franz/media-vault/internal/util"
	"github.com/franz/media-vault/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:   "watch <inbox-dir>",
	Short: "Watch a directory and import dropped files",
	Long: `Import every file dropped into the inbox directory through the dedup
pipeline. Files already present are backfilled first; imported files are
archived into a done/ subdirectory. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("subject", "s", "", "acting subject id (required)")
	watchCmd.Flags().StringP("context", "c", "raw", "usage context for imported files")
	watchCmd.Flags().Bool("public", false, "mark imported usages as public")

	viper.BindPFlag("subject", watchCmd.Flags().Lookup("subject"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	applyLogFlags()

	subject := viper.GetString("subject")
	if subject == "" {
		return fmt.Errorf("subject is required (use --subject/-s or set in config)")
	}

	ctxFlag, _ := cmd.Flags().GetString("context")
	usageContext, err := store.ParseContext(ctxFlag)
	if err != nil {
		return err
	}
	isPublic, _ := cmd.Flags().GetBool("public")

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	vault, err := openVault()
	if err != nil {
		return err
	}

	logger := openEventLogger()
	defer logger.Close()
	wireSchemaEvents(db, logger)

	pipe := pipeline.New(&pipeline.Config{
		Store:  db,
		Blobs:  vault,
		Logger: logger,
	})

	watcher := watch.New(&watch.Config{
		Pipeline:  pipe,
		Logger:    logger,
		SubjectID: subject,
		Context:   usageContext,
		IsPublic:  isPublic,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = watcher.Run(ctx, args[0])
	if err == context.Canceled {
		util.InfoLog("Watch stopped")
		return nil
	}
	return err
}
