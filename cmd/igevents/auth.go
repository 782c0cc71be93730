package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igevents/pkg/auth"
)

var authProvider string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage inference API credentials",
	Long: `Manage stored inference API credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

The IGEVENTS_API_KEY environment variable always takes precedence over
stored credentials.`,
}

// authSetCmd represents the auth set command
var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store an API key securely",
	Long: `Store an inference API key in the system keychain or encrypted file.

The key is read from the terminal without echoing.`,
	Example: `  # Store the default provider's key
  igevents auth set

  # Store a key for a specific provider
  igevents auth set --provider groq`,
	Run: runAuthSet,
}

// authRemoveCmd represents the auth remove command
var authRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a stored API key",
	Run:   runAuthRemove,
}

// authShowCmd represents the auth show command
var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show whether an API key is stored",
	Run:   runAuthShow,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authRemoveCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.PersistentFlags().StringVar(&authProvider, "provider", auth.DefaultProvider, "credential slot name")
}

func runAuthSet(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize credential manager: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("API key for %s (hidden as you type): ", authProvider)
	key, err := readSecret()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read API key: %v\n", err)
		os.Exit(1)
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "API key is required")
		os.Exit(1)
	}

	cred := &auth.Credential{
		Provider: authProvider,
		APIKey:   key,
	}
	if err := manager.Store(cred); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to store credential: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Credential stored for %s\n", authProvider)
}

func runAuthRemove(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize credential manager: %v\n", err)
		os.Exit(1)
	}

	if err := manager.Delete(authProvider); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to remove credential: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Credential removed for %s\n", authProvider)
}

func runAuthShow(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize credential manager: %v\n", err)
		os.Exit(1)
	}

	cred, err := manager.Retrieve(authProvider)
	if err != nil {
		fmt.Printf("No credential stored for %s\n", authProvider)
		return
	}

	masked := "****"
	if len(cred.APIKey) > 8 {
		masked = cred.APIKey[:4] + "..." + cred.APIKey[len(cred.APIKey)-4:]
	}
	fmt.Printf("Provider:  %s\n", cred.Provider)
	fmt.Printf("API key:   %s\n", masked)
	if !cred.LastModified.IsZero() {
		fmt.Printf("Modified:  %s\n", cred.LastModified.Format("2006-01-02 15:04:05"))
	}
}

// readSecret reads a value from stdin without echoing when attached to a
// terminal, falling back to a plain line read otherwise.
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
