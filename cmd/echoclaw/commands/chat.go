package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jholhewres/echoclaw/pkg/echoclaw/channels/console"
	"github.com/jholhewres/echoclaw/pkg/echoclaw/router"
	"github.com/spf13/cobra"
)

// newChatCmd creates the `echoclaw chat` command for local conversations.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant from the terminal",
		Long: `Talk to the assistant without a phone. With an argument the message is
answered once; without one an interactive session starts.

In the interactive session, lines starting with ">" are treated as written by
you, so persona learning and owner commands (/help, /allow, ...) work.

Examples:
  echoclaw chat "what's the weather in Lisbon?"
  echoclaw chat
  echoclaw chat --group --chat-id team@g.us`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().String("chat-id", console.ChannelName, "simulated chat ID")
	cmd.Flags().Bool("group", false, "simulate a group chat")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd, os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt, err := buildRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	chatID, _ := cmd.Flags().GetString("chat-id")
	isGroup, _ := cmd.Flags().GetBool("group")

	if len(args) > 0 {
		return chatOnce(ctx, cmd.OutOrStdout(), rt.router, router.Message{
			Text:    args[0],
			ChatID:  chatID,
			IsGroup: isGroup,
		})
	}

	con := console.New(console.Config{ChatID: chatID, IsGroup: isGroup}, logger)
	if err := rt.assistant.ChannelManager().Register(con); err != nil {
		return err
	}
	if err := rt.assistant.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	fmt.Println("EchoClaw chat. Type 'exit' to quit, '>' to speak as yourself.")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-con.Done():
	case <-sigChan:
	}

	shutdown(rt, logger)
	return nil
}

// chatOnce routes a single message and prints the reply, if any.
func chatOnce(ctx context.Context, w io.Writer, r *router.Router, msg router.Message) error {
	reply := r.Route(ctx, msg)
	if !reply.Send {
		fmt.Fprintf(w, "(no reply: %s)\n", reply.Outcome)
		return nil
	}
	fmt.Fprintln(w, reply.Text)
	return nil
}
