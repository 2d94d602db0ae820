package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brianly1003/stockchat/internal/app"
	"github.com/brianly1003/stockchat/internal/security"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authTokenUser string

// authCmd groups authentication utilities.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication utilities",
}

// authHashPasswordCmd prints a bcrypt hash for a users[].password_hash entry.
var authHashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Hash a password for the auth.users section",
	Long: `Prompt for a password and print its bcrypt hash.

Paste the result into auth.users[].password_hash so the config file
never holds plaintext passwords.`,
	Args: cobra.NoArgs,
	RunE: runAuthHashPassword,
}

// authTokenCmd signs a token with the configured key.
var authTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a token for a user without logging in",
	Long: `Sign a token for --user with auth.jwt_key. Useful for scripts and
load tests. The token is accepted by any server sharing the same key.`,
	Args: cobra.NoArgs,
	RunE: runAuthToken,
}

func init() {
	authCmd.AddCommand(authHashPasswordCmd)
	authCmd.AddCommand(authTokenCmd)

	authTokenCmd.Flags().StringVar(&authTokenUser, "user", "", "principal name to put in the token")
	_ = authTokenCmd.MarkFlagRequired("user")
}

func runAuthHashPassword(cmd *cobra.Command, args []string) error {
	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password cannot be empty")
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}

func runAuthToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Auth.JWTKey == "" {
		return errors.New("auth.jwt_key is not set; a token signed with a random key would be rejected by the server")
	}

	user := strings.TrimSpace(authTokenUser)
	if user == "" {
		return errors.New("--user cannot be empty")
	}

	tokens, err := app.NewTokenManager(cfg)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(user)
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token.Value)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", token.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
	return nil
}

// readPassword reads without echo from a terminal, or one line from anything else.
func readPassword(in io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
