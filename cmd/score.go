package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/jobscan/internal/domain"
	"github.com/spigell/jobscan/internal/logger"
	"github.com/spigell/jobscan/internal/pipeline"
)

const (
	PromptShowResults = "Show results"
	PromptShowDetails = "Show details"
	PromptDumpToFile  = "Dump results to file"
	PromptExit        = "Exit"
	PromptBack        = "back"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowResults, PromptShowDetails, PromptDumpToFile, PromptExit},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Extract job postings and score them against a candidate profile",
	Run: func(cmd *cobra.Command, _ []string) {
		score(cmd)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().StringP("profile", "p", "", "candidate profile in JSON (required)")
	scoreCmd.Flags().String("jobs", "", "JSON file with a list of job references")
	scoreCmd.Flags().StringArrayP("url", "u", nil, "job posting URL, can be repeated")
	scoreCmd.Flags().String("seed", "", "careers page to discover job links from when no references are given")
	scoreCmd.Flags().Float64("threshold", 0.7, "minimum match score between 0 and 1")
	scoreCmd.Flags().Int("max-results", 10, "maximum number of results, 0 keeps all")
	scoreCmd.Flags().String("identity", "", "identity the batch is charged to")
	scoreCmd.Flags().String("db", "", "sqlite file to record results in. Default is unset.")
	scoreCmd.Flags().BoolP("auto-approve", "y", false, "print results and exit without the interactive menu")

	_ = scoreCmd.MarkFlagRequired("profile")

	viper.BindPFlag("identity", scoreCmd.Flags().Lookup("identity"))
	viper.BindPFlag("scoring.threshold", scoreCmd.Flags().Lookup("threshold"))
	viper.BindPFlag("scoring.max-results", scoreCmd.Flags().Lookup("max-results"))
	viper.BindPFlag("store.path", scoreCmd.Flags().Lookup("db"))
}

func score(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the jobscan", zap.String("version", version))
	logger.Debug(fmt.Sprintf("starting with config: \n %s", redacted(config)))

	profile, err := loadProfile(cmd.Flag("profile").Value.String())
	if err != nil {
		logger.Fatal("loading candidate profile", zap.Error(err))
	}

	urls, _ := cmd.Flags().GetStringArray("url")
	refs, err := loadReferences(cmd.Flag("jobs").Value.String(), urls)
	if err != nil {
		logger.Fatal("loading job references", zap.Error(err))
	}

	seed := strings.TrimSpace(cmd.Flag("seed").Value.String())
	if len(refs) == 0 && seed == "" {
		logger.Fatal("no job references",
			zap.String("hint", "pass --jobs file.json, one or more --url flags or a --seed careers page"),
		)
	}

	svc, err := buildServices(ctx, config, config.Store.Path, logger)
	if err != nil {
		logger.Fatal("building services", zap.Error(err))
	}
	defer svc.Close()

	resp, err := svc.pipeline.ScoreJobBatch(ctx, pipeline.Request{
		Identity:       config.Identity,
		References:     refs,
		SeedURL:        seed,
		Profile:        profile,
		MatchThreshold: config.Scoring.Threshold,
		MaxResults:     config.Scoring.MaxResults,
	})
	if err != nil {
		var qerr *pipeline.QuotaExceededError
		if errors.As(err, &qerr) {
			logger.Fatal("quota exceeded",
				zap.Int("used", qerr.Used),
				zap.Int("limit", qerr.Limit),
				zap.Duration("retry_after", qerr.RetryAfter),
			)
		}
		logger.Fatal("scoring job batch", zap.Error(err))
	}

	logger.Info("batch scored",
		zap.String("batch_id", resp.BatchID),
		zap.String("processing_method", resp.ProcessingMethod),
		zap.Int("results", len(resp.Results)),
		zap.Duration("elapsed", resp.Elapsed),
	)

	if len(resp.SkillGap.Missing) > 0 {
		logger.Info("skills in demand missing from the profile",
			zap.Strings("missing", resp.SkillGap.Missing),
			zap.Float64("coverage", resp.SkillGap.Coverage),
		)
	}

	if len(resp.Results) == 0 {
		logger.Info("exiting", zap.String("reason", "no results above the threshold"))
		return
	}

	out := cmd.OutOrStdout()
	if autoApprove, _ := cmd.Flags().GetBool("auto-approve"); autoApprove {
		printResults(out, resp.Results)
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, out, logger, resp); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, out io.Writer, logger *zap.Logger, resp pipeline.Response) error {
	switch action {
	case PromptShowResults:
		printResults(out, resp.Results)
		return nil
	case PromptShowDetails:
		return showDetails(out, resp.Results)
	case PromptDumpToFile:
		filename, err := dumpToTmpFile(resp)
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showDetails(out io.Writer, results []domain.MatchResult) error {
	items := make([]string, 0, len(results)+1)
	for _, r := range results {
		items = append(items, resultLabel(r))
	}

	resultPrompt := promptui.Select{
		Label: "Choose a result and press ENTER",
		Items: append(items, PromptBack),
		Size:  10,
	}

	idx, selected, err := resultPrompt.Run()
	if err != nil {
		return err
	}
	if selected == PromptBack {
		return nil
	}

	pretty, err := json.MarshalIndent(results[idx], "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(out, string(pretty))
	return nil
}

func resultLabel(r domain.MatchResult) string {
	return fmt.Sprintf("%d. [%d] %s / %s / %s", r.Rank, r.MatchScore, r.Job.DisplayTitle(), r.Job.DisplayCompany(), r.Job.URL)
}

func printResults(out io.Writer, results []domain.MatchResult) {
	for _, r := range results {
		fmt.Fprintln(out, resultLabel(r))
		fmt.Fprintf(out, "   tier: %s, confidence: %s\n", r.ScoringTier.Name(), r.Confidence)
		if len(r.MatchingSkills) > 0 {
			fmt.Fprintf(out, "   matching: %s\n", strings.Join(r.MatchingSkills, ", "))
		}
		if len(r.MissingSkills) > 0 {
			fmt.Fprintf(out, "   missing: %s\n", strings.Join(r.MissingSkills, ", "))
		}
		if r.Narrative != "" {
			fmt.Fprintf(out, "   %s\n", r.Narrative)
		}
	}
}

func dumpToTmpFile(resp pipeline.Response) (string, error) {
	f, err := os.CreateTemp("", app+"-results-*.json")
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return "", err
	}

	return f.Name(), nil
}

func loadProfile(path string) (domain.CandidateProfile, error) {
	var profile domain.CandidateProfile

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read profile: %w", err)
	}
	if err := json.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("decode profile %q: %w", path, err)
	}

	return profile, profile.Validate()
}

// loadReferences merges the references file with plain URLs given on the command line.
func loadReferences(path string, urls []string) ([]domain.JobReference, error) {
	var refs []domain.JobReference

	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read job references: %w", err)
		}
		if err := json.Unmarshal(data, &refs); err != nil {
			return nil, fmt.Errorf("decode job references %q: %w", path, err)
		}
	}

	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			refs = append(refs, domain.JobReference{URL: u})
		}
	}

	return refs, nil
}

func redacted(config *Config) string {
	masked := *config
	if config.AI != nil && config.AI.Gemini != nil {
		ai := *config.AI
		gem := *config.AI.Gemini
		if gem.APIKey != "" {
			gem.APIKey = "***"
		}
		ai.Gemini = &gem
		masked.AI = &ai
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(masked, "", "  ")
	return string(pretty)
}
