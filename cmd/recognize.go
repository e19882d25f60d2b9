package cmd

import (
	"context"
	"fmt"
	"image/jpeg"
	"os"

	"github.com/google/renameio"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/detect"
	"github.com/kozaktomas/face-gate/internal/gallery"
	"github.com/kozaktomas/face-gate/internal/pipeline"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize <image>...",
	Short: "Run frames through the recognition pipeline",
	Long: `Run one or more camera frames through the recognition pipeline and
print the access decision for every detected face. Each decision is
recorded in the audit log exactly as it would be by the server.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)

	recognizeCmd.Flags().String("mode", "", "Detector mode: precise or fast")
	recognizeCmd.Flags().Float64("threshold", 0, "Match threshold override")
	recognizeCmd.Flags().String("annotated", "", "Write the annotated frame to this file (single image only)")
}

func runRecognize(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	mode, err := detect.ParseMode(mustGetString(cmd, "mode"))
	if err != nil {
		return err
	}
	threshold, err := thresholdOverride(mustGetFloat64(cmd, "threshold"), cmd.Flags().Changed("threshold"))
	if err != nil {
		return err
	}
	annotatedPath := mustGetString(cmd, "annotated")
	if annotatedPath != "" && len(args) > 1 {
		return fmt.Errorf("--annotated works with a single image")
	}

	a, err := setupApp(ctx, cfg, gallery.Strict)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := pipeline.ProcessOptions{
		Mode:      mode,
		Threshold: threshold,
		Annotate:  annotatedPath != "",
	}

	denied := false
	for _, path := range args {
		frame, err := loadImage(path)
		if err != nil {
			return err
		}

		res, err := a.pipeline.ProcessFrame(ctx, frame, opts)
		if err != nil {
			// A dead detector backend skips the frame, not the run.
			fmt.Printf("%s: skipped (%v)\n", path, err)
			denied = true
			continue
		}

		fmt.Printf("%s: %s\n", path, res.Message)
		for _, face := range res.Faces {
			if face.FaceError {
				fmt.Printf("  face at (%d,%d) %dx%d: unusable\n",
					face.Region.X, face.Region.Y, face.Region.W, face.Region.H)
				continue
			}
			fmt.Printf("  face at (%d,%d) %dx%d: %s %s (%.3f)\n",
				face.Region.X, face.Region.Y, face.Region.W, face.Region.H,
				face.Outcome.Status, face.Outcome.IdentityID, face.Outcome.Confidence)
		}
		if res.Primary == nil || !res.Primary.Granted() {
			denied = true
		}

		if annotatedPath != "" {
			if err := writeAnnotated(annotatedPath, res); err != nil {
				return err
			}
			fmt.Printf("Annotated frame written to %s\n", annotatedPath)
		}
	}

	if denied {
		// Close explicitly, os.Exit skips the deferred call.
		a.Close()
		os.Exit(1)
	}
	return nil
}

// thresholdOverride validates an explicit --threshold value. An unset flag
// keeps the configured default; zero only means "default" when the flag was
// not given at all, so `--threshold 0` is rejected rather than silently
// ignored.
func thresholdOverride(value float64, set bool) (float64, error) {
	if !set {
		return 0, nil
	}
	if value <= 0 || value >= 1 {
		return 0, fmt.Errorf("--threshold must be in (0, 1), got %v", value)
	}
	return value, nil
}

func writeAnnotated(path string, res *pipeline.Result) error {
	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer t.Cleanup()

	if err := jpeg.Encode(t, res.Annotated, &jpeg.Options{Quality: 90}); err != nil {
		return fmt.Errorf("encoding annotated frame: %w", err)
	}
	return t.CloseAtomicallyReplace()
}
