package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/facewatch/internal/store"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/spf13/cobra"
)

var (
	resetDB        bool
	resetSnapshots bool
	resetYes       bool
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset stored state (snapshots, stored reference encodings)",
	Long:  "Clears saved data. By default only the snapshot directory is cleared. Use --db to also drop stored reference encodings.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if !resetDB && !resetSnapshots {
			resetSnapshots = true
		}

		reader := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()

		if resetSnapshots {
			dir := cfg.Snapshot.Directory
			if resetYes || confirm(reader, out, fmt.Sprintf("⚠️  Are you sure you want to delete all snapshots in %s?", dir)) {
				fmt.Fprintln(out, "🗑️  Clearing Snapshots...")
				removeDir(dir)
			}
		}

		if resetDB {
			if cfg.Gallery.DatabaseURL == "" {
				return fmt.Errorf("gallery.database_url (or FACEWATCH_DATABASE_URL) is required for --db")
			}
			if resetYes || confirm(reader, out, "⚠️  Are you sure you want to DROP the stored reference encodings?") {
				fmt.Fprintln(out, "🗑️  Clearing Database...")
				if err := resetDatabase(cmd.Context(), cfg.Gallery.DatabaseURL); err != nil {
					utils.ShowError("Failed to reset database", err, nil)
					return err
				}
			}
		}

		fmt.Fprintln(out, "✨ Reset Complete.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetDB, "db", false, "Drop stored reference encodings")
	resetCmd.Flags().BoolVar(&resetSnapshots, "snapshots", false, "Clear the snapshot directory")
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func resetDatabase(ctx context.Context, url string) error {
	db, err := store.New(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close(context.Background())
	return db.Reset(ctx)
}

func confirm(r *bufio.Reader, w io.Writer, prompt string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}

func removeDir(path string) {
	if err := os.RemoveAll(path); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  Failed to remove %s: %v\n", path, err)
	}
}
