package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/franz/media-vault/internal/pipeline"
	"github.com/franz/media-vault/internal/store"
	"github.com/franz/media-vault/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [files...]",
	Short: "Upload files into the vault, deduplicating by content",
	Long: `Upload one or more files. Each file is hashed; bytes identical to an
already-stored asset are not stored again - the existing asset is linked
instead. Every upload records a usage edge for the acting subject.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)

	uploadCmd.Flags().StringP("subject", "s", "", "acting subject id (required)")
	uploadCmd.Flags().StringP("context", "c", "raw", "usage context (avatar|cover|post|chat|item|raw)")
	uploadCmd.Flags().Bool("public", false, "mark the usage as public")
	uploadCmd.Flags().Int64("parent", 0, "asset id this upload is a derivative (crop) of")
	uploadCmd.Flags().Bool("json", false, "print machine-readable results")
	uploadCmd.Flags().Int64("compress-threshold", 0, "recompress images larger than this many bytes")
	uploadCmd.Flags().Int("jpeg-quality", 0, "JPEG quality for recompression")

	viper.BindPFlag("subject", uploadCmd.Flags().Lookup("subject"))
	viper.BindPFlag("compress-threshold", uploadCmd.Flags().Lookup("compress-threshold"))
	viper.BindPFlag("jpeg-quality", uploadCmd.Flags().Lookup("jpeg-quality"))
}

func runUpload(cmd *cobra.Command, args []string) error {
	applyLogFlags()
	ctx := context.Background()

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
	parentID, _ := cmd.Flags().GetInt64("parent")
	asJSON, _ := cmd.Flags().GetBool("json")

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
		Store:             db,
		Blobs:             vault,
		Logger:            logger,
		CompressThreshold: viper.GetInt64("compress-threshold"),
		JPEGQuality:       viper.GetInt("jpeg-quality"),
	})

	var failed int
	for _, path := range args {
		result, err := pipe.UploadFile(ctx, path, &pipeline.Request{
			SubjectID: subject,
			Context:   usageContext,
			IsPublic:  isPublic,
			ParentID:  parentID,
			Origin:    "cli",
		})
		if err != nil {
			util.ErrorLog("Upload failed for %s: %v", path, err)
			failed++
			continue
		}

		if asJSON {
			json.NewEncoder(os.Stdout).Encode(map[string]any{
				"file":         path,
				"url":          result.URL,
				"hash":         result.Hash,
				"asset_id":     result.Asset.ID,
				"deduplicated": result.Deduplicated,
			})
			continue
		}

		if result.Deduplicated {
			util.SuccessLog("%s -> asset %d (deduplicated, %s)", path,
				result.Asset.ID, humanize.Bytes(uint64(result.Asset.SizeBytes)))
		} else {
			util.SuccessLog("%s -> asset %d (%s stored)", path,
				result.Asset.ID, humanize.Bytes(uint64(result.Asset.SizeBytes)))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(args))
	}
	return nil
}
