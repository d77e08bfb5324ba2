package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/logger"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Extract a single job posting and print it with extraction diagnostics",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		fetch(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func fetch(cmd *cobra.Command, url string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	svc, err := buildServices(ctx, config, "", logger)
	if err != nil {
		logger.Fatal("building services", zap.Error(err))
	}
	defer svc.Close()

	job, err := svc.pipeline.FetchSingleJob(ctx, config.Identity, url)
	if err != nil {
		logger.Fatal("fetching job", zap.Error(err))
	}

	pretty, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		logger.Fatal("encoding job", zap.Error(err))
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
}
