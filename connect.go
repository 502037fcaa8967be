package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/seafile-filelink/internal/filelink"
	"github.com/tonimelisma/seafile-filelink/internal/seafile"
)

func newTestConnectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-connection",
		Short: "Log in to a Seafile server and list writable libraries",
		Long: `Log in with the given credentials and show the account's storage usage and
the libraries attachments can be uploaded to. Nothing is stored.

The password is prompted for on a terminal, or read as one line from stdin.`,
		Args: cobra.NoArgs,
		RunE: runTestConnection,
	}

	addCredentialFlags(cmd)

	return cmd
}

func newConfigureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure <account-id>",
		Short: "Save the Seafile target of a mail account",
		Long: `Save the Seafile server, library and upload folder for a mail account.
Credentials go to the OS credential store, everything else to the config file.

Unless --no-verify is given, the credentials are checked first and the library
must be one of the account's writable libraries. Secrets are prompted for on a
terminal, or read one per line from stdin: the password first, then the share
link password when --share-password is set.`,
		Args: cobra.ExactArgs(1),
		RunE: runConfigure,
	}

	addCredentialFlags(cmd)
	cmd.Flags().String("library", "", "library (repo) id to upload into")
	cmd.Flags().String("library-name", "", "library display name (default: looked up)")
	cmd.Flags().String("path", "", "folder inside the library (default: from config)")
	cmd.Flags().Int("expire-days", 0, "share link lifetime in days, 0 = never (default: from config)")
	cmd.Flags().Bool("share-password", false, "protect share links with a password")
	cmd.Flags().Bool("no-verify", false, "save without logging in first")

	cmd.MarkFlagRequired("library") //nolint:errcheck // flag defined above

	return cmd
}

func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "", "Seafile server URL (e.g. https://cloud.example.com)")
	cmd.Flags().String("username", "", "Seafile login (usually an email address)")
	cmd.Flags().String("otp", "", "two-factor code, if the account requires one")
	cmd.Flags().Bool("stored-password", false, "use the password already in the credential store")

	cmd.MarkFlagRequired("server")   //nolint:errcheck // flag defined above
	cmd.MarkFlagRequired("username") //nolint:errcheck // flag defined above
}

// credentialFlags reads the shared credential flags and the password.
func credentialFlags(cmd *cobra.Command, secrets *secretReader) (filelink.TestRequest, error) {
	server, _ := cmd.Flags().GetString("server")
	username, _ := cmd.Flags().GetString("username")
	otp, _ := cmd.Flags().GetString("otp")
	stored, _ := cmd.Flags().GetBool("stored-password")

	req := filelink.TestRequest{ServerURL: server, Username: username, OTPCode: otp}

	if !stored {
		password, err := secrets.read("Password")
		if err != nil {
			return req, err
		}

		if password == "" {
			return req, fmt.Errorf("%w: empty password (use --stored-password to reuse the stored one)",
				seafile.ErrInvalidInput)
		}

		req.Password = password
	}

	return req, nil
}

type testConnectionJSON struct {
	Server     string             `json:"server"`
	Email      string             `json:"email"`
	UsageBytes int64              `json:"usage_bytes"`
	QuotaBytes int64              `json:"quota_bytes"`
	Libraries  []filelink.Library `json:"libraries"`
}

func runTestConnection(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	a, err := cc.newApp()
	if err != nil {
		return err
	}

	req, err := credentialFlags(cmd, newSecretReader(cmd.InOrStdin()))
	if err != nil {
		return err
	}

	res, err := a.orchestrator.TestConnection(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}

	out := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(out, testConnectionJSON{
			Server:     req.ServerURL,
			Email:      res.Email,
			UsageBytes: res.UsageBytes,
			QuotaBytes: res.QuotaBytes,
			Libraries:  res.Libraries,
		})
	}

	fmt.Fprintf(out, "Connected as %s\n", res.Email)
	fmt.Fprintf(out, "Storage: %s\n", formatQuota(res.UsageBytes, res.QuotaBytes))

	if len(res.Libraries) == 0 {
		fmt.Fprintln(out, "No writable libraries.")
		return nil
	}

	fmt.Fprintln(out)

	rows := make([][]string, 0, len(res.Libraries))
	for _, lib := range res.Libraries {
		rows = append(rows, []string{lib.ID, lib.Name})
	}

	printTable(out, []string{"LIBRARY ID", "NAME"}, rows)

	return nil
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	accountID := args[0]

	a, err := cc.newApp()
	if err != nil {
		return err
	}

	secrets := newSecretReader(cmd.InOrStdin())

	req, err := credentialFlags(cmd, secrets)
	if err != nil {
		return err
	}

	libraryID, _ := cmd.Flags().GetString("library")
	libraryName, _ := cmd.Flags().GetString("library-name")
	uploadPath, _ := cmd.Flags().GetString("path")
	hasSharePassword, _ := cmd.Flags().GetBool("share-password")
	noVerify, _ := cmd.Flags().GetBool("no-verify")

	settings := filelink.Settings{
		ServerURL:        req.ServerURL,
		Username:         req.Username,
		Password:         req.Password,
		ContainerID:      strings.TrimSpace(libraryID),
		ContainerName:    libraryName,
		UploadPath:       uploadPath,
		HasSharePassword: hasSharePassword,
	}

	if settings.UploadPath == "" {
		settings.UploadPath = cc.Config.Upload.DefaultPath
	}

	if cmd.Flags().Changed("expire-days") {
		days, _ := cmd.Flags().GetInt("expire-days")
		settings.ShareExpireDays = &days
	}

	if hasSharePassword {
		if settings.SharePassword, err = secrets.read("Share link password"); err != nil {
			return err
		}
	}

	if !noVerify {
		res, err := a.orchestrator.TestConnection(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("connection test failed: %w", err)
		}

		lib, ok := findLibrary(res.Libraries, settings.ContainerID)
		if !ok {
			return fmt.Errorf("%w: library %q is not a writable library of %s",
				seafile.ErrInvalidInput, settings.ContainerID, res.Email)
		}

		if settings.ContainerName == "" {
			settings.ContainerName = lib.Name
		}

		settings.Token = res.Token
	}

	if err := a.orchestrator.SaveConfig(accountID, settings); err != nil {
		return fmt.Errorf("saving account %s: %w", accountID, err)
	}

	cc.Statusf("Saved account %s (%s on %s)\n", accountID, req.Username, req.ServerURL)

	return nil
}

func findLibrary(libs []filelink.Library, id string) (filelink.Library, bool) {
	for _, lib := range libs {
		if lib.ID == id {
			return lib, true
		}
	}

	return filelink.Library{}, false
}
