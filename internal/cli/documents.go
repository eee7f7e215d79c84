package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var documentsJSON bool

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List ingested documents",
	RunE:  runDocuments,
}

var documentsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Remove a document and its chunks from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentsDelete,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report whether the vector store and embedder are ready",
	RunE:  runHealth,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-chunk and re-embed every ingested document",
	Long: `Drop all stored vectors and re-ingest every registered document from its
stored pages. Needed after changing chunk sizes or the embedding model.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	documentsCmd.Flags().BoolVar(&documentsJSON, "json", false, "output as JSON")
	documentsCmd.AddCommand(documentsDeleteCmd)

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(rebuildCmd)
}

func runDocuments(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.pipeline.Documents()
	if err != nil {
		return err
	}

	if documentsJSON {
		output, _ := json.MarshalIndent(docs, "", "  ")
		fmt.Println(string(output))
		return nil
	}
	if len(docs) == 0 {
		fmt.Println("No documents ingested.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPAGES\tCHUNKS\tTOKENS\tINGESTED")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", d.Name, len(d.Pages), len(d.ChunkIDs), d.Tokens, d.IngestedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runDocumentsDelete(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pipeline.DeleteDocument(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	h := a.pipeline.Health(cmd.Context())
	output, _ := json.MarshalIndent(h, "", "  ")
	fmt.Println(string(output))
	if h.Status != "healthy" {
		return fmt.Errorf("status %s", h.Status)
	}
	return nil
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.pipeline.Documents()
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("No documents to rebuild.")
		return a.store.Migrate(a.cfg)
	}

	bar := newProgressBar(len(docs), "Rebuilding")
	done := 0
	batch, err := a.rebuild(ctx, func(string, error) {
		done++
		bar.Set(done)
	})
	bar.Finish()
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Printf("\nRebuilt %d of %d documents.\n", batch.Indexed, len(docs))
	if len(batch.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range batch.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	return nil
}
