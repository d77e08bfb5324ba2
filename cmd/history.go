package cmd

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/logger"
	"github.com/spigell/jobscan/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently recorded matches",
	Run: func(cmd *cobra.Command, _ []string) {
		history(cmd)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("db", "", "sqlite file with recorded results (default is store.path from config)")
	historyCmd.Flags().String("identity", "", "only list batches of this identity")
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of matches to list")
}

func history(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	path := strings.TrimSpace(cmd.Flag("db").Value.String())
	if path == "" {
		path = config.Store.Path
	}
	if path == "" {
		logger.Fatal("result store is not configured", zap.String("hint", "pass --db or set store.path"))
	}

	db, err := store.Open(ctx, path)
	if err != nil {
		logger.Fatal("opening result store", zap.Error(err))
	}
	defer db.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	matches, err := db.RecentMatches(ctx, cmd.Flag("identity").Value.String(), limit)
	if err != nil {
		logger.Fatal("listing matches", zap.Error(err))
	}

	if len(matches) == 0 {
		logger.Info("exiting", zap.String("reason", "no recorded matches"))
		return
	}

	out := cmd.OutOrStdout()
	batch := ""
	for _, m := range matches {
		if m.BatchID != batch {
			batch = m.BatchID
			fmt.Fprintf(out, "%s  %s  %s\n", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.BatchID, m.ProcessingMethod)
		}
		fmt.Fprintf(out, "  %d. [%d] %s / %s / %s\n", m.Rank, m.Score, m.Title, m.Company, m.URL)
	}
}
