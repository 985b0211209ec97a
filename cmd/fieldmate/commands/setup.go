package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fieldmate/fieldmate/pkg/fieldmate/assistant"
)

// newSetupCmd creates the `fieldmate setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard to create your initial fieldmate.yaml.
Asks for the business owner's name, trade, contact details, and the LLM
model. The API key is stored in the OS keyring when available, never in
the config file.

Examples:
  fieldmate setup`,
		RunE: runSetup,
	}
}

func runSetup(cmd *cobra.Command, _ []string) error {
	reader := bufio.NewReader(os.Stdin)
	cfg := assistant.DefaultConfig()

	fmt.Println()
	fmt.Println("FieldMate setup")
	fmt.Println("---------------")
	fmt.Println()

	fmt.Printf("1. Assistant name [%s]: ", cfg.Name)
	if name := readLine(reader); name != "" {
		cfg.Name = name
	}

	fmt.Printf("2. LLM model [%s]: ", cfg.Model)
	if model := readLine(reader); model != "" {
		cfg.Model = model
	}

	fmt.Printf("3. Database path [%s]: ", cfg.Store.Path)
	if path := readLine(reader); path != "" {
		cfg.Store.Path = path
	}

	fmt.Printf("4. Gateway address [%s]: ", cfg.Gateway.Address)
	if addr := readLine(reader); addr != "" {
		cfg.Gateway.Address = addr
	}

	fmt.Print("5. Enable WhatsApp channel? [y/N]: ")
	cfg.WhatsApp.Enabled = strings.EqualFold(readLine(reader), "y")

	// API key goes to the OS keyring; the config file never holds it.
	fmt.Println()
	fmt.Println("   The API key is read without echo and stored in the OS keyring.")
	fmt.Println("   Leave empty to use FIELDMATE_API_KEY or OPENAI_API_KEY instead.")
	fmt.Print("6. LLM API key (hidden): ")
	key, err := readSecret()
	if err != nil {
		return fmt.Errorf("read API key: %w", err)
	}
	if key != "" {
		if !assistant.KeyringAvailable() {
			fmt.Println("   [!] OS keyring unavailable. Set FIELDMATE_API_KEY in your environment instead.")
		} else if err := assistant.StoreAPIKey(key); err != nil {
			fmt.Printf("   [!] Could not store key in keyring: %v\n", err)
		} else {
			fmt.Println("   Key stored in OS keyring.")
		}
	}

	path, _ := cmd.Root().PersistentFlags().GetString("config")
	if path == "" {
		path = "fieldmate.yaml"
	}
	if err := writeConfig(path, cfg); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Config written to %s. Start the daemon with: fieldmate serve\n", path)
	return nil
}

func readLine(reader *bufio.Reader) string {
	line, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

// readSecret reads a line without echo when stdin is a terminal.
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		reader := bufio.NewReader(os.Stdin)
		return readLine(reader), nil
	}
	raw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func writeConfig(path string, cfg *assistant.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}
