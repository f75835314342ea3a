package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/andresmejia3/facewatch/internal/config"
	"github.com/andresmejia3/facewatch/internal/gallery"
	"github.com/andresmejia3/facewatch/internal/store"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/andresmejia3/facewatch/internal/worker"
	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Inspect and publish the reference gallery",
}

var galleryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List identities from the manifest and the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runGalleryList(cmd.Context(), cmd.OutOrStdout(), cfg.Gallery)
	},
}

var gallerySyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Encode the manifest images and store them in the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runGallerySync(cmd.Context(), cmd.OutOrStdout(), cfg)
	},
}

func init() {
	galleryCmd.AddCommand(galleryListCmd)
	galleryCmd.AddCommand(gallerySyncCmd)
	rootCmd.AddCommand(galleryCmd)
}

// loadManifest reads the configured manifest. A missing file yields an empty
// manifest so the watcher can run with every face reported as Unknown.
func loadManifest(path string) (gallery.Manifest, bool, error) {
	if path == "" {
		return gallery.Manifest{}, false, nil
	}
	m, err := gallery.LoadManifest(path)
	if errors.Is(err, fs.ErrNotExist) {
		return gallery.Manifest{}, false, nil
	}
	if err != nil {
		return gallery.Manifest{}, false, err
	}
	return m, true, nil
}

// startDetector launches the external detector process.
func startDetector(ctx context.Context, c config.Config) (*worker.PythonWorker, error) {
	w, err := worker.NewPythonWorker(ctx, 0, c.Detector.Command, c.DetectorTimeout())
	if err != nil {
		return nil, fmt.Errorf("failed to start face detector: %w", err)
	}
	return w, nil
}

// buildGallery encodes the manifest and merges in identities stored in the
// database. Any failure here is fatal for the caller.
func buildGallery(ctx context.Context, c config.Gallery, enc gallery.Encoder, progress io.Writer) (*gallery.Gallery, error) {
	m, found, err := loadManifest(c.Manifest)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Warn("gallery manifest not found, every face will be reported as Unknown", "path", c.Manifest)
	}

	var fromManifest []gallery.KnownIdentity
	if len(m.Identities) > 0 {
		fromManifest, err = gallery.Build(ctx, m, enc, gallery.BuildOptions{Progress: progress})
		if err != nil {
			return nil, fmt.Errorf("build gallery: %w", err)
		}
	}

	var fromStore []gallery.KnownIdentity
	if c.DatabaseURL != "" {
		db, err := store.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		// Use Background here because the main context might be cancelled already (due to Ctrl+C)
		defer db.Close(context.Background())

		fromStore, err = db.LoadIdentities(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stored identities: %w", err)
		}
	}

	g, err := gallery.New(gallery.Merge(fromManifest, fromStore))
	if err != nil {
		return nil, fmt.Errorf("build gallery: %w", err)
	}
	logger.Info("gallery ready",
		"identities", g.Len(),
		"dimension", g.Dim(),
		"from_manifest", len(fromManifest),
		"from_database", len(fromStore),
	)
	return g, nil
}

func runGalleryList(ctx context.Context, out io.Writer, c config.Gallery) error {
	var rows [][]string

	m, _, err := loadManifest(c.Manifest)
	if err != nil {
		utils.ShowError("Failed to read gallery manifest", err, nil)
		return err
	}
	for _, e := range m.Identities {
		rows = append(rows, []string{e.Label, "manifest", strconv.Itoa(len(e.Images)) + " images", "-"})
	}

	if c.DatabaseURL != "" {
		db, err := store.New(ctx, c.DatabaseURL)
		if err != nil {
			utils.ShowError("Failed to connect to database", err, nil)
			return err
		}
		defer db.Close(context.Background())

		identities, err := db.ListIdentities(ctx)
		if err != nil {
			utils.ShowError("Failed to list identities", err, nil)
			return err
		}
		for _, id := range identities {
			rows = append(rows, []string{
				id.Label,
				"database",
				strconv.Itoa(id.Count) + " encodings",
				id.CreatedAt.Local().Format("2006-01-02 15:04"),
			})
		}
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No identities configured.")
		return nil
	}
	fmt.Fprintln(out, renderTable([]string{"LABEL", "SOURCE", "REFERENCES", "ADDED"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	return nil
}

func runGallerySync(ctx context.Context, out io.Writer, c config.Config) error {
	if c.Gallery.DatabaseURL == "" {
		return errors.New("gallery.database_url (or FACEWATCH_DATABASE_URL) is required for sync")
	}
	m, found, err := loadManifest(c.Gallery.Manifest)
	if err != nil {
		utils.ShowError("Failed to read gallery manifest", err, nil)
		return err
	}
	if !found || len(m.Identities) == 0 {
		return fmt.Errorf("no identities in manifest %s", c.Gallery.Manifest)
	}

	w, err := startDetector(ctx, c)
	if err != nil {
		utils.ShowError("Failed to start face detector", err, nil)
		return err
	}
	defer w.Close()

	identities, err := gallery.Build(ctx, m, w, gallery.BuildOptions{Progress: os.Stderr})
	if err != nil {
		utils.ShowError("Failed to encode gallery", err, w.Cmd)
		return err
	}

	db, err := store.New(ctx, c.Gallery.DatabaseURL)
	if err != nil {
		utils.ShowError("Failed to connect to database", err, nil)
		return err
	}
	defer db.Close(context.Background())

	for _, id := range identities {
		if err := db.ReplaceIdentity(ctx, id); err != nil {
			utils.ShowError("Failed to store identity "+id.Label, err, nil)
			return err
		}
		logger.Info("identity stored", "label", id.Label, "encodings", len(id.Encodings))
	}
	fmt.Fprintf(out, "\nStored %d identities.\n", len(identities))
	return nil
}
