package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/accounting"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/assistant"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/mailer"
	"github.com/fieldmate/fieldmate/pkg/fieldmate/store"
)

// cliPhone identifies the local terminal account.
const cliPhone = "cli"

// newChatCmd creates the `fieldmate chat` command for local conversations.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant from the terminal",
		Long: `Send one message, or start an interactive session when called
without arguments.

Examples:
  fieldmate chat "what's on my schedule tomorrow?"
  fieldmate chat`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	// Keep the terminal clean; only warnings and errors surface.
	level := slog.LevelWarn
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st, err := store.Open(cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	a := assistant.New(cfg, st,
		accounting.NewHTTPClient(cfg.Accounting, logger),
		mailer.New(cfg.Mailer, logger),
		logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	account, err := localAccount(ctx, st)
	if err != nil {
		return err
	}

	if len(args) > 0 {
		return sendOnce(ctx, a, account.ID, args[0])
	}
	return runInteractiveChat(ctx, a, account.ID)
}

func sendOnce(ctx context.Context, a *assistant.Assistant, accountID, text string) error {
	reply, err := a.HandleMessage(ctx, &assistant.Request{AccountID: accountID, Text: text})
	if err != nil {
		return err
	}
	fmt.Println(reply.Text)
	return nil
}

// runInteractiveChat runs the readline REPL until EOF or an exit command.
func runInteractiveChat(ctx context.Context, a *assistant.Assistant, accountID string) error {
	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("FieldMate interactive chat. Type 'exit' or Ctrl+D to quit.")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			fmt.Println("bye")
			return nil
		}
		if err != nil {
			return err
		}

		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			fmt.Println("bye")
			return nil
		}

		reply, err := a.HandleMessage(ctx, &assistant.Request{AccountID: accountID, Text: text})
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}
		fmt.Println(reply.Text)
	}
}

// localAccount returns the terminal user's account, creating it on first use.
func localAccount(ctx context.Context, st *store.Store) (*store.Account, error) {
	account, err := st.GetAccountByPhone(ctx, cliPhone)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}
	account = &store.Account{Name: "Terminal", Phone: cliPhone}
	if err := st.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}
