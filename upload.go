package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/seafile-filelink/internal/filelink"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload --account <account-id> <file>...",
		Short: "Upload files and print their share links",
		Long: `Upload local files through an account's settings, exactly as the mail client
would, and print one share link per file. Files are uploaded one after another;
the first failure stops the run.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runUpload,
	}

	cmd.Flags().String("account", "", "account id to upload with")
	cmd.Flags().String("name", "", "remote file name (single file only; default: local base name)")
	cmd.MarkFlagRequired("account") //nolint:errcheck // flag defined above

	return cmd
}

// uploadJSON is the JSON representation of one uploaded file.
type uploadJSON struct {
	File              string `json:"file"`
	Name              string `json:"name"`
	URL               string `json:"url"`
	ExpiresAt         string `json:"expires_at,omitempty"`
	PasswordProtected bool   `json:"password_protected"`
}

func runUpload(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	accountID, _ := cmd.Flags().GetString("account")
	remoteName, _ := cmd.Flags().GetString("name")

	if remoteName != "" && len(args) > 1 {
		return errors.New("--name can only be used with a single file")
	}

	a, err := cc.newApp()
	if err != nil {
		return err
	}

	ctx, stop := shutdownContext(cmd.Context(), cc.Logger)
	defer stop()

	results := make([]uploadJSON, 0, len(args))

	for _, localPath := range args {
		data, err := os.ReadFile(localPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", localPath, err)
		}

		name := remoteName
		if name == "" {
			name = filepath.Base(localPath)
		}

		cc.Statusf("Uploading %s (%s)...\n", name, formatSize(int64(len(data))))

		res, err := a.orchestrator.Upload(ctx, filelink.UploadRequest{
			AccountID: accountID,
			FileID:    uuid.NewString(),
			FileName:  name,
			Data:      data,
		})
		if err != nil {
			return fmt.Errorf("uploading %s: %w", localPath, err)
		}

		cc.Logger.Debug("uploaded", slog.String("file", localPath), slog.String("stored_name", res.StoredName))

		r := uploadJSON{
			File:              localPath,
			Name:              res.StoredName,
			URL:               res.URL,
			PasswordProtected: res.PasswordProtected,
		}

		if !res.ExpiresAt.IsZero() {
			r.ExpiresAt = res.ExpiresAt.UTC().Format(time.RFC3339)
		}

		results = append(results, r)

		if !cc.Flags.JSON {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  (expires: %s)\n", res.StoredName, res.URL, formatExpiry(res.ExpiresAt))
		}
	}

	if cc.Flags.JSON {
		return printJSON(cmd.OutOrStdout(), results)
	}

	return nil
}
