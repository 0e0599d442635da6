package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"govrag/src/infrastructure/log"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "govrag",
	Short: "Government information assistant backed by retrieval augmented generation",
	Long: `govrag answers citizen questions about government services from an indexed
document set. It serves the chat and search APIs, loads documents into the
search index and runs ingestion jobs from a queue.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")
}

func initConfig() error {
	// A missing .env is fine
	_ = godotenv.Load()

	settingDefaultConfig()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", cfgFile, err)
		}
	}

	if err := log.Setup(viper.GetString("log.level"), viper.GetBool("log.development")); err != nil {
		return err
	}
	if cfgFile != "" {
		log.Info("loaded config", "file", viper.ConfigFileUsed())
	}
	return nil
}
