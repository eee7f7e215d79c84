package cli

import (
	"fmt"

	"docqa/internal/domain"
	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List stored conversations",
	RunE:  runConversations,
}

var conversationsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsShow,
}

var conversationsClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationsClear,
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
	conversationsCmd.AddCommand(conversationsClearCmd)
}

func openMemory(cmd *cobra.Command) (*app, error) {
	a, err := openApp(cmd.Context())
	if err != nil {
		return nil, err
	}
	if a.pipeline.Memory() == nil {
		a.Close()
		return nil, fmt.Errorf("%w: conversation memory is disabled", domain.ErrConfiguration)
	}
	return a, nil
}

func runConversations(cmd *cobra.Command, args []string) error {
	a, err := openMemory(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ids, err := a.pipeline.Memory().Conversations()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No conversations.")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runConversationsShow(cmd *cobra.Command, args []string) error {
	a, err := openMemory(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	messages, err := a.pipeline.Memory().History(args[0])
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return fmt.Errorf("%w: conversation %s", domain.ErrDocumentNotFound, args[0])
	}
	for _, m := range messages {
		fmt.Printf("[%s] %s: %s\n", m.Timestamp.Local().Format("2006-01-02 15:04:05"), m.Role, m.Content)
		if m.Role == domain.RoleAssistant && m.Confidence > 0 {
			fmt.Printf("    confidence %.2f, %d citations\n", m.Confidence, len(m.Citations))
		}
	}
	return nil
}

func runConversationsClear(cmd *cobra.Command, args []string) error {
	a, err := openMemory(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.pipeline.Memory().Clear(args[0]); err != nil {
		return err
	}
	fmt.Printf("Cleared conversation %s\n", args[0])
	return nil
}
