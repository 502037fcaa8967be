package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/seafile-filelink/internal/config"
	"github.com/tonimelisma/seafile-filelink/internal/vault"
)

func newAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List configured accounts",
		Long: `List every configured mail account with its Seafile target and whether
credentials for it are present in the credential store. No network calls are
made.`,
		Args: cobra.NoArgs,
		RunE: runAccounts,
	}
}

func newForgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <account-id>",
		Short: "Remove an account and its stored credentials",
		Long: `Remove an account from the config file and delete its password, token and
share link password from the credential store. Credentials shared with another
configured account for the same server and user are kept.`,
		Args: cobra.ExactArgs(1),
		RunE: runForget,
	}
}

// accountJSON is the JSON representation of an account for --json output.
type accountJSON struct {
	ID               string `json:"id"`
	Server           string `json:"server"`
	Username         string `json:"username"`
	LibraryID        string `json:"library_id"`
	LibraryName      string `json:"library_name,omitempty"`
	UploadPath       string `json:"upload_path"`
	ShareExpireDays  int    `json:"share_expire_days"`
	HasSharePassword bool   `json:"has_share_password"`
	Password         bool   `json:"password_stored"`
	Token            bool   `json:"token_stored"`
}

func runAccounts(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	a, err := cc.newApp()
	if err != nil {
		return err
	}

	ids := a.store.AccountIDs()
	accounts := make([]accountJSON, 0, len(ids))

	for _, id := range ids {
		acct := a.store.Account(id)
		if acct == nil {
			continue
		}

		accounts = append(accounts, describeAccount(id, acct, a.vault, cc.Logger))
	}

	out := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(out, accounts)
	}

	if len(accounts) == 0 {
		fmt.Fprintln(out, "No accounts configured. Run 'seafile-filelink configure' to add one.")
		return nil
	}

	rows := make([][]string, 0, len(accounts))
	for i := range accounts {
		acct := &accounts[i]

		library := acct.LibraryName
		if library == "" {
			library = acct.LibraryID
		}

		rows = append(rows, []string{
			acct.ID, acct.Server, acct.Username, library, acct.UploadPath,
			formatExpireDays(acct.ShareExpireDays), credentialState(acct),
		})
	}

	printTable(out, []string{"ACCOUNT", "SERVER", "USERNAME", "LIBRARY", "PATH", "EXPIRY", "CREDENTIALS"}, rows)

	return nil
}

func describeAccount(id string, acct *config.Account, v *vault.Vault, logger *slog.Logger) accountJSON {
	return accountJSON{
		ID:               id,
		Server:           acct.Origin.String(),
		Username:         acct.Username,
		LibraryID:        acct.RepoID,
		LibraryName:      acct.RepoName,
		UploadPath:       acct.UploadPath,
		ShareExpireDays:  acct.ShareExpireDays,
		HasSharePassword: acct.HasSharePassword,
		Password:         hasSecret(v, acct, vault.RealmPassword, logger),
		Token:            hasSecret(v, acct, vault.RealmToken, logger),
	}
}

// hasSecret reports whether a secret for the account's user is stored.
// Vault errors are logged and reported as absent.
func hasSecret(v *vault.Vault, acct *config.Account, realm vault.Realm, logger *slog.Logger) bool {
	cred, err := v.GetFor(acct.Origin, realm, acct.Username)
	if err != nil {
		logger.Warn("reading credential store",
			slog.String("origin", acct.Origin.String()),
			slog.String("realm", string(realm)),
			slog.String("error", err.Error()),
		)

		return false
	}

	return cred != nil
}

func credentialState(acct *accountJSON) string {
	switch {
	case acct.Password && acct.Token:
		return "password, token"
	case acct.Password:
		return "password"
	case acct.Token:
		return "token only"
	default:
		return "missing"
	}
}

func runForget(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	accountID := args[0]

	a, err := cc.newApp()
	if err != nil {
		return err
	}

	if a.store.Account(accountID) == nil {
		cc.Statusf("Account %s is not configured.\n", accountID)
		return nil
	}

	if err := a.orchestrator.DeleteAccount(accountID); err != nil {
		return fmt.Errorf("forgetting account %s: %w", accountID, err)
	}

	cc.Statusf("Removed account %s.\n", accountID)

	return nil
}
