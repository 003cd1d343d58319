// Command portalctl runs conversation analysis, search and suggestions against
// local transcript and corpus files, without a database or model provider.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chatportal-backend/internal/analysis"
	"chatportal-backend/internal/search"
	"chatportal-backend/internal/suggestions"
)

var version = "dev"

type options struct {
	jsonOutput bool
	verbose    bool
	corpusPath string
	limit      int
	days       int
	asOf       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "portalctl",
		Short:         "Analyze and search chat portal conversations offline",
		Version:       version,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log component diagnostics to stderr")

	rootCmd.AddCommand(
		newAnalyzeCmd(opts),
		newSearchCmd(opts),
		newRelatedCmd(opts),
		newTrendingCmd(opts),
	)
	return rootCmd
}

func (o *options) logger(cmd *cobra.Command) *log.Logger {
	if !o.verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
}

func (o *options) analyzer(cmd *cobra.Command) *analysis.Analyzer {
	return analysis.NewAnalyzer(nil, 0, o.logger(cmd))
}

func (o *options) requireCorpus(cmd *cobra.Command) (*corpus, error) {
	if o.corpusPath == "" {
		return nil, fmt.Errorf("--corpus is required")
	}
	return loadCorpus(cmd.Context(), o.corpusPath, o.analyzer(cmd))
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE",
		Short: "Summarize a transcript and extract topics, sentiment, decisions and action items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := loadTranscript(args[0])
			if err != nil {
				return err
			}
			result := opts.analyzer(cmd).Analyze(cmd.Context(), conv.Messages)
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Summary:   %s\n", result.Summary)
			fmt.Fprintf(out, "Sentiment: %s\n", result.Sentiment)
			fmt.Fprintf(out, "Topics:    %s\n", strings.Join(result.Topics, ", "))
			fmt.Fprintf(out, "Messages:  %d (%d user, %d ai), %d words\n",
				result.TotalMessages, result.UserMessages, result.AIMessages, result.WordCount)
			printList(out, "Key points", result.KeyPoints)
			printList(out, "Decisions", result.Decisions)
			printList(out, "Action items", result.ActionItems)
			return nil
		},
	}
}

func newSearchCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Answer a question from a corpus of past conversations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.requireCorpus(cmd)
			if err != nil {
				return err
			}
			logger := opts.logger(cmd)
			engine := search.NewEngine(search.NewScorer(nil, nil, 0, logger), nil, 0, logger)
			answer := engine.Query(cmd.Context(), strings.Join(args, " "), c.conversations)
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), answer)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Response)
			if len(answer.Conversations) == 0 {
				return nil
			}
			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSCORE\tTOPICS")
			for _, m := range answer.Conversations {
				fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\n", c.label(m.ID), m.Title, m.RelevanceScore, strings.Join(m.Topics, ", "))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&opts.corpusPath, "corpus", "c", "", "Corpus file (YAML or JSON)")
	return cmd
}

func newRelatedCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "related ID",
		Short: "List conversations related to one in the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.requireCorpus(cmd)
			if err != nil {
				return err
			}
			target, ok := c.find(args[0])
			if !ok {
				return fmt.Errorf("conversation %q not found in %s", args[0], opts.corpusPath)
			}
			related := suggestions.NewService().Related(target, c.conversations, opts.limit)
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), related)
			}

			out := cmd.OutOrStdout()
			if len(related) == 0 {
				fmt.Fprintln(out, "No related conversations.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSCORE\tREASON")
			for _, r := range related {
				fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\n", c.label(r.ID), r.Title, r.SimilarityScore, r.Reason)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&opts.corpusPath, "corpus", "c", "", "Corpus file (YAML or JSON)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", suggestions.DefaultLimit, "Maximum number of suggestions")
	return cmd
}

func newTrendingCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trending",
		Short: "Rank topics across conversations started in a recent window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.days <= 0 {
				return fmt.Errorf("--days must be positive, got %d", opts.days)
			}
			now := time.Now
			if opts.asOf != "" {
				at, err := parseTime(opts.asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				now = func() time.Time { return at }
			}
			c, err := opts.requireCorpus(cmd)
			if err != nil {
				return err
			}
			trending := suggestions.NewServiceAt(now).Trending(c.conversations, opts.days)
			if opts.jsonOutput {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"trending_topics": trending,
					"period_days":     opts.days,
				})
			}

			out := cmd.OutOrStdout()
			if len(trending) == 0 {
				fmt.Fprintf(out, "No topics in the last %d days.\n", opts.days)
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TOPIC\tCONVERSATIONS\tSHARE")
			for _, t := range trending {
				fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", t.Topic, t.ConversationCount, t.Percentage)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&opts.corpusPath, "corpus", "c", "", "Corpus file (YAML or JSON)")
	cmd.Flags().IntVarP(&opts.days, "days", "d", suggestions.DefaultWindowDays, "Window size in days")
	cmd.Flags().StringVar(&opts.asOf, "as-of", "", "Evaluate the window as of this time (RFC3339 or YYYY-MM-DD)")
	return cmd
}

func printList(w io.Writer, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", heading)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
