package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	langdetect "github.com/cropsentinel/advisor/backend/internal/analysis/language"
	"github.com/cropsentinel/advisor/backend/internal/client/advisor"
	smsclient "github.com/cropsentinel/advisor/backend/internal/client/sms"
	"github.com/cropsentinel/advisor/backend/internal/config"
	"github.com/cropsentinel/advisor/backend/internal/model/language"
)

var (
	advisorURL string
	lang       string
	timeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "langprobe",
	Short: "Probe language detection and the advisory endpoint",
	Long: `langprobe exercises the pieces a farmer's message passes through.

Available subcommands:
  detect - Classify text and show which rule decided it
  ask    - Send a question to the advisory endpoint
  inbox  - List messages held by the SMS proxy`,
	SilenceUsage: true,
}

var detectCmd = &cobra.Command{
	Use:   "detect <text>",
	Short: "Classify text into a supported language",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result := langdetect.Analyze(strings.Join(args, " "))
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "language: %s (%s)\n", result.Language, result.Language.NativeName())
		fmt.Fprintf(out, "branch:   %s\n", result.Branch)
		if result.Branch == langdetect.BranchDefault || result.Branch == langdetect.BranchOromo {
			fmt.Fprintf(out, "oromo:    %d tokens, %d patterns\n", result.OromoTokens, result.OromoPatterns)
		}
		if result.TigrinyaShadowed {
			fmt.Fprintln(out, "note:     Tigrinya glyphs present but Ethiopic script matched first")
		}
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Send a question to the advisory endpoint",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		code := langdetect.Detect(text)
		if lang != "" {
			parsed, ok := language.Lookup(lang)
			if !ok {
				return fmt.Errorf("unsupported language %q", lang)
			}
			code = parsed
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		reply := advisor.NewClient(advisorURL, timeout, nil).Respond(ctx, text, code)
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "language: %s\n", reply.Language)
		fmt.Fprintf(out, "outcome:  %s\n", reply.Outcome)
		if !reply.OK() {
			fmt.Fprintf(out, "failure:  %s (status %d): %v\n", reply.Failure, reply.StatusCode, reply.Err)
		}
		fmt.Fprintf(out, "\n%s\n", reply.Text)
		return nil
	},
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "List messages held by the SMS proxy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if !cfg.SMS.Enabled() {
			return fmt.Errorf("SMS_PROXY_URL is not set")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		msgs, err := smsclient.NewClient(cfg.SMS.ProxyURL, timeout).List(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, m := range msgs {
			state := "pending"
			if m.HasResponse {
				state = "responded"
			}
			fmt.Fprintf(out, "%s  %-16s  %-2s  %-9s  %s\n",
				m.DateCreated.Format(time.RFC3339), m.From, langdetect.Detect(m.Body), state, m.Body)
		}
		fmt.Fprintf(out, "%d messages\n", len(msgs))
		return nil
	},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	defaultURL := os.Getenv("ADVISOR_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080/api/ai/respond"
	}

	askCmd.Flags().StringVar(&advisorURL, "url", defaultURL, "advisory endpoint")
	askCmd.Flags().StringVar(&lang, "lang", "", "force a language code instead of detecting it")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 45*time.Second, "request timeout")

	rootCmd.AddCommand(detectCmd, askCmd, inboxCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
