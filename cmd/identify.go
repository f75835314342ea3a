package cmd

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/andresmejia3/facewatch/internal/config"
	"github.com/andresmejia3/facewatch/internal/matcher"
	"github.com/andresmejia3/facewatch/internal/utils"
	"github.com/spf13/cobra"
)

var identifyThreshold float64

var identifyCmd = &cobra.Command{
	Use:   "identify <image_path>",
	Short: "Match every face in an image against the gallery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		threshold := cfg.Recognition.MatchThreshold
		if cmd.Flags().Changed("threshold") {
			threshold = identifyThreshold
		}
		if err := checkThreshold(threshold); err != nil {
			return err
		}
		return runIdentify(cmd.Context(), cmd.OutOrStdout(), args[0], threshold)
	},
}

func init() {
	identifyCmd.Flags().Float64VarP(&identifyThreshold, "threshold", "t", config.DefaultMatchThreshold, "Face matching threshold")
	rootCmd.AddCommand(identifyCmd)
}

func checkThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 {
		return fmt.Errorf("invalid match threshold %v: must be >= 0", threshold)
	}
	return nil
}

func runIdentify(ctx context.Context, out io.Writer, imagePath string, threshold float64) error {
	imgData, err := os.ReadFile(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}

	fmt.Fprintln(os.Stderr, "🚀 Starting face detector...")
	w, err := startDetector(ctx, cfg)
	if err != nil {
		utils.ShowError("Failed to start face detector", err, nil)
		return err
	}
	defer w.Close()

	g, err := buildGallery(ctx, cfg.Gallery, w, os.Stderr)
	if err != nil {
		utils.ShowError("Gallery construction failed", err, w.Cmd)
		return err
	}

	fmt.Fprintln(os.Stderr, "🔍 Analyzing faces...")
	faces, err := w.Detect(ctx, imgData)
	if err != nil {
		utils.ShowError("Face detection failed", err, w.Cmd)
		return err
	}

	if len(faces) == 0 {
		fmt.Fprintln(out, "❌ No faces detected in the provided image.")
		return nil
	}

	rows := make([][]string, 0, len(faces))
	for i, f := range faces {
		res := matcher.Match(f.Encoding, g, threshold)
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			res.Label,
			strconv.FormatFloat(res.Distance, 'f', 4, 64),
			strconv.FormatBool(res.IsMatch),
			fmt.Sprintf("%d,%d,%d,%d", f.Box.Top, f.Box.Right, f.Box.Bottom, f.Box.Left),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"FACE", "LABEL", "DISTANCE", "MATCH", "BOX (T,R,B,L)"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft},
	))
	return nil
}
