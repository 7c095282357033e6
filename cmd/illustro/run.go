package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"illustro/config"
	"illustro/internal/httpx"
	"illustro/internal/illustrate"
	"illustro/internal/llm"
	"illustro/internal/store"
	"illustro/models"
	searchmodels "illustro/tools/image_search/models"
	"illustro/tools/image_search/serper"
	"illustro/tools/image_search/wikipedia"
)

// runCMD processes a transcript file in one shot: every assistant message
// goes through the pipeline synchronously and the chosen images are
// printed, making the pipeline usable without the HTTP server.
func runCMD() *cobra.Command {
	var cfgPath string
	var transcriptPath string
	var confirm bool

	var run = &cobra.Command{
		Use:   "run",
		Short: "Illustrate a transcript file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if transcriptPath == "" {
				return fmt.Errorf("--file is required")
			}
			raw, err := os.ReadFile(transcriptPath)
			if err != nil {
				return err
			}
			var entries []struct {
				Role string `json:"role"`
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw, &entries); err != nil {
				return fmt.Errorf("parsing transcript: %w", err)
			}

			if confirm {
				cfg.Illustration.AutoMode = false
			}

			ctx := context.Background()
			st := store.NewMemoryStore()

			provider := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Timeout)
			searchHTTP := httpx.New(cfg.Search.Timeout, cfg.Search.Retries, 0)
			wiki := &wikipedia.Search{
				Lang:              cfg.Search.Wikipedia.Language,
				FallbackLang:      cfg.Search.Wikipedia.FallbackLanguage,
				MinArticleResults: cfg.Search.Wikipedia.MinArticleResults,
				MinImageWidth:     cfg.Search.Wikipedia.MinImageWidth,
				HTTP:              searchHTTP,
			}
			web := &serper.Search{APIKey: cfg.Search.Serper.APIKey, HTTP: searchHTTP}

			extractor := illustrate.NewExtractor(provider, cfg.LLM.CompletionModel, cfg.Illustration.MaxQueries)
			aggregator := illustrate.NewAggregator(wiki, web, cfg.Search.Serper.APIKey != "", cfg.Illustration.CandidatesPerSource, cfg.Illustration.SearchPreference)
			selector := illustrate.NewSelector(provider, cfg.LLM.VisionModel, searchHTTP)

			renderer := &consoleRenderer{out: cmd.OutOrStdout()}
			var approver illustrate.Approver
			if !cfg.Illustration.AutoMode {
				approver = &consoleApprover{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
			}
			pipeline := illustrate.NewPipeline(cfg.Illustration, extractor, aggregator, selector, st, renderer, approver)

			for _, entry := range entries {
				msg, err := st.AppendMessage(ctx, models.Role(entry.Role), entry.Text)
				if err != nil {
					return err
				}
				if msg.Role != models.RoleAssistant {
					continue
				}
				state, err := pipeline.Run(ctx, msg)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "message %d failed: %v\n", msg.ID, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "message %d: %s\n", msg.ID, state)
			}
			return nil
		},
	}
	run.Flags().StringVar(&transcriptPath, "file", "", "transcript JSON file ([{role, text}, ...])")
	run.Flags().BoolVar(&confirm, "confirm", false, "ask before committing each image")
	run.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}

type consoleRenderer struct{ out interface{ Write([]byte) (int, error) } }

func (r *consoleRenderer) ShowLoading(messageID int) {
	fmt.Fprintf(r.out, "message %d: searching...\n", messageID)
}

func (r *consoleRenderer) ClearLoading(int) {}

func (r *consoleRenderer) RenderAnnotation(messageID int, a models.Annotation) error {
	fmt.Fprintf(r.out, "message %d: %s (%s, query %q)\n", messageID, a.URL, a.Source, a.Query)
	return nil
}

func (r *consoleRenderer) HasIllustration(int) bool { return false }

type consoleApprover struct {
	in  *bufio.Reader
	out interface{ Write([]byte) (int, error) }
}

func (a *consoleApprover) PresentForApproval(ctx context.Context, c searchmodels.Candidate) (bool, error) {
	fmt.Fprintf(a.out, "use %q from %s? [y/N] ", c.URL, c.Source)
	line, err := a.in.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
