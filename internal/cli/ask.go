package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/usecase"
	"github.com/spf13/cobra"
)

var (
	askConversation string
	askTopK         int
	askLambda       float64
	askJSON         bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the ingested documents",
	Long: `Retrieve the most relevant chunks, generate an answer grounded in them and
print it with page citations. Weak evidence yields
"insufficient information in the documents" instead of a guess.

Examples:
  docqa ask "What was the revenue growth in 2023?"
  docqa ask "And in 2024?" -c 5f0c...   # continue a conversation
  docqa ask "Summarise the risks" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	searchTopK  int
	searchJSON  bool
	searchNoMMR bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Show the chunks a question would retrieve",
	Long: `Search the index and print the re-ranked candidates without generating an
answer.

Examples:
  docqa search "revenue growth"
  docqa search "headcount" -k 10 --no-mmr --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askConversation, "conversation", "c", "", "conversation id to continue")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "chunks used as context (default from config)")
	askCmd.Flags().Float64Var(&askLambda, "lambda", -1, "MMR relevance/diversity trade-off in [0, 1] (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.Flags().BoolVar(&searchNoMMR, "no-mmr", false, "disable MMR reranking")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.warnIfStale()

	req := usecase.QueryRequest{
		Query:          strings.Join(args, " "),
		ConversationID: askConversation,
		TopK:           askTopK,
	}
	if cmd.Flags().Changed("lambda") {
		req.Lambda = &askLambda
	}

	answer, err := a.pipeline.Query(ctx, req)
	if err != nil {
		return fmt.Errorf("query failed (%s): %w", domain.Kind(err), err)
	}

	if askJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(answer.Text)
	fmt.Printf("\nConfidence: %.2f (%s, %d chunks retrieved)\n", answer.Confidence, answer.Outcome, answer.RetrievedChunks)
	if len(answer.Citations) > 0 {
		fmt.Println("Sources:")
		for i, c := range answer.Citations {
			fmt.Printf("  [%d] %s, page %d (%s)\n", i+1, c.Document, c.Page, c.ChunkID)
		}
	}
	if answer.ConversationID != "" {
		fmt.Printf("Conversation: %s\n", answer.ConversationID)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	a.warnIfStale()

	query := strings.Join(args, " ")
	var candidates []domain.Candidate
	if searchNoMMR {
		candidates, err = a.pipeline.SearchWithoutMMR(ctx, query, searchTopK)
	} else {
		candidates, err = a.pipeline.Search(ctx, query, searchTopK)
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results := usecase.ToCandidateResults(candidates)

	if searchJSON {
		output, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("Found %d results for: %s\n\n", len(results), query)
	for i, r := range results {
		fmt.Printf("--- [%d] %s, page %d (score: %.2f) ---\n", i+1, r.Document, r.Page, r.Score)
		text := r.Text
		if len(text) > 500 {
			text = text[:500] + "..."
		}
		fmt.Println(text)
		fmt.Println()
	}
	return nil
}
