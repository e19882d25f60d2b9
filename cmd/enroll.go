package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/detect"
	"github.com/kozaktomas/face-gate/internal/gallery"
	"github.com/kozaktomas/face-gate/internal/pipeline"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [image]",
	Short: "Enroll an identity from a reference photo",
	Long: `Enroll an identity into the gallery from a reference photo containing
exactly one face. With --dir, every image in the directory is enrolled
under an identity named after its file name.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("name", "", "Display name of the identity")
	enrollCmd.Flags().String("id", "", "Identity ID (defaults to a slug of the name)")
	enrollCmd.Flags().String("mode", "", "Detector mode: precise or fast")
	enrollCmd.Flags().String("dir", "", "Enroll every image in a directory, named after the files")
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return img, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func runEnroll(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	mode, err := detect.ParseMode(mustGetString(cmd, "mode"))
	if err != nil {
		return err
	}

	a, err := setupApp(ctx, cfg, gallery.Strict)
	if err != nil {
		return err
	}
	defer a.Close()

	if dir := mustGetString(cmd, "dir"); dir != "" {
		return enrollDirectory(ctx, a, dir, mode)
	}

	if len(args) != 1 {
		return errors.New("expected exactly one image path (or --dir)")
	}
	name := mustGetString(cmd, "name")
	id := mustGetString(cmd, "id")
	if name == "" && id == "" {
		return errors.New("--name or --id is required")
	}

	frame, err := loadImage(args[0])
	if err != nil {
		return err
	}

	assigned, err := a.enroller.Enroll(ctx, frame, id, name, mode)
	if err != nil {
		return fmt.Errorf("enrolling %q: %w", name, err)
	}

	fmt.Printf("Enrolled %s as %s\n", name, assigned)
	return nil
}

// enrollDirectory registers one identity per image file, named after the
// file. Frames that fail enrollment are reported and skipped.
func enrollDirectory(ctx context.Context, a *app, dir string, mode detect.Mode) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && isImageFile(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no images found in %s", dir)
	}

	fmt.Printf("Found %d images to enroll\n\n", len(paths))
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Enrolling"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, skipped int
	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		frame, err := loadImage(path)
		if err != nil {
			fmt.Printf("\nSkipping %s: %v\n", filepath.Base(path), err)
			skipped++
			bar.Add(1)
			continue
		}

		if _, err := a.enroller.Enroll(ctx, frame, "", name, mode); err != nil {
			var eerr *pipeline.EnrollError
			if errors.As(err, &eerr) {
				fmt.Printf("\nSkipping %s: %v\n", filepath.Base(path), eerr)
				skipped++
				bar.Add(1)
				continue
			}
			return fmt.Errorf("enrolling %s: %w", filepath.Base(path), err)
		}
		enrolled++
		bar.Add(1)
	}

	fmt.Printf("\n\nEnrolled %d identities, skipped %d\n", enrolled, skipped)
	return nil
}
