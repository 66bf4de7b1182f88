package main

import (
	"fmt"
	"os"

	"github.com/franz/media-vault/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version is set at build time
	Version = "dev"

	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "mvault",
		Short: "Media vault - content-addressed asset storage with dedup and lineage",
		Long: `mvault stores media assets content-addressed: identical bytes are kept
exactly once no matter how many subjects upload them. Every upload records a
usage edge (who referenced the asset, in what context), crops keep a lineage
link to their original, and unreferenced assets can be proven orphaned and
reclaimed.`,
		Version: Version,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/mvault.yaml)")
	rootCmd.PersistentFlags().String("db", "mvault.db", "catalogue database file")
	rootCmd.PersistentFlags().String("vault", "vault", "vault directory for asset bytes")
	rootCmd.PersistentFlags().String("artifacts", "artifacts", "directory for event logs")
	rootCmd.PersistentFlags().Bool("nas", false, "vault is on network storage (enables retries and tuned pragmas)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "quiet output (errors only)")

	// Bind flags to viper
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag("vault", rootCmd.PersistentFlags().Lookup("vault"))
	viper.BindPFlag("artifacts", rootCmd.PersistentFlags().Lookup("artifacts"))
	viper.BindPFlag("nas", rootCmd.PersistentFlags().Lookup("nas"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in common locations
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")
		viper.SetConfigName("mvault")
		viper.SetConfigType("yaml")
	}

	// Read in environment variables that match
	viper.SetEnvPrefix("MVAULT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && !viper.GetBool("quiet") {
		util.InfoLog("Using config file: %s", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
