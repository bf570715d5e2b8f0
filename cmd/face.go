package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/engine"
	"github.com/kozaktomas/roll-call/internal/faceindex"
	"github.com/kozaktomas/roll-call/internal/imgstore"
)

var faceCmd = &cobra.Command{
	Use:   "face",
	Short: "Manage enrolled face embeddings",
}

var faceRegisterCmd = &cobra.Command{
	Use:   "register <image-or-dir>...",
	Short: "Enroll face images for a person",
	Long: `Detect a face in each image and store its embedding for a person.
Directory arguments are expanded to the image files they contain.
Images with no face, more than one face or a face below the minimum
box size are skipped and reported. Running servers pick the new
embeddings up on the next index rebuild.

Example:
  rollcall face register --type student --id 42 photos/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFaceRegister,
}

func init() {
	rootCmd.AddCommand(faceCmd)
	faceCmd.AddCommand(faceRegisterCmd)

	faceRegisterCmd.Flags().String("type", "student", "Person type: student or teacher")
	faceRegisterCmd.Flags().Int64("id", 0, "Person ID (required)")
	faceRegisterCmd.Flags().Int("concurrency", 4, "Number of images processed in parallel")
	_ = faceRegisterCmd.MarkFlagRequired("id")
}

func runFaceRegister(cmd *cobra.Command, args []string) error {
	personType := database.PersonType(mustGetString(cmd, "type"))
	personID := mustGetInt64(cmd, "id")
	concurrency := mustGetInt(cmd, "concurrency")
	if !personType.Valid() {
		return fmt.Errorf("invalid person type %q", personType)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	paths, err := collectImagePaths(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no image files found")
	}

	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	if err := verifyPerson(ctx, store, personType, personID); err != nil {
		return err
	}

	images, err := imgstore.New(cfg.Images.Dir)
	if err != nil {
		return fmt.Errorf("failed to prepare image store: %w", err)
	}
	eng := engine.NewHTTPEngine(cfg.Engine)

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	var enrolled, skipped int
	var mu sync.Mutex
	var failures []string

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, path := range paths {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			defer bar.Add(1)

			err := registerOne(ctx, store, eng, images, cfg, personType, personID, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped++
				failures = append(failures, fmt.Sprintf("%s: %v", path, err))
				return
			}
			enrolled++
		}(path)
	}

	wg.Wait()
	fmt.Println()

	total, _ := store.CountFaces(ctx, personType, personID)
	fmt.Printf("\nEnrolled %d images, skipped %d\n", enrolled, skipped)
	fmt.Printf("Total embeddings for %s %d: %d\n", personType, personID, total)
	for _, f := range failures {
		fmt.Printf("  skipped %s\n", f)
	}
	return nil
}

// collectImagePaths expands directory arguments into the image files they
// contain (non-recursive). File arguments pass through unchanged.
func collectImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".jpg", ".jpeg", ".png", ".webp":
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths, nil
}

func verifyPerson(ctx context.Context, store database.Store, personType database.PersonType, personID int64) error {
	switch personType {
	case database.PersonStudent:
		s, err := store.GetStudent(ctx, personID)
		if err != nil {
			return fmt.Errorf("failed to load student: %w", err)
		}
		if s == nil {
			return fmt.Errorf("student %d not found", personID)
		}
	case database.PersonTeacher:
		t, err := store.GetTeacher(ctx, personID)
		if err != nil {
			return fmt.Errorf("failed to load teacher: %w", err)
		}
		if t == nil {
			return fmt.Errorf("teacher %d not found", personID)
		}
	}
	return nil
}

func registerOne(ctx context.Context, store database.Store, eng engine.Engine, images *imgstore.Store, cfg *config.Config, personType database.PersonType, personID int64, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	detections, err := eng.DetectFaces(ctx, data)
	if err != nil {
		return fmt.Errorf("face detection failed: %w", err)
	}
	if len(detections) == 0 {
		return fmt.Errorf("no face found")
	}
	if len(detections) > 1 {
		return fmt.Errorf("image contains %d faces", len(detections))
	}

	det := detections[0]
	if det.BBox.MinSide() < float64(cfg.Recognition.MinBoxSize) {
		return fmt.Errorf("face too small (%.0fpx)", det.BBox.MinSide())
	}
	if len(det.Embedding) != cfg.Recognition.EmbeddingDim {
		return fmt.Errorf("unexpected embedding dimension %d", len(det.Embedding))
	}

	// Crop failures are not fatal, the embedding is what matters.
	imagePath, err := images.SaveCrop(data, det.BBox)
	if err != nil {
		imagePath = ""
	}

	quality := det.Score
	_, err = store.AddFace(ctx, database.StoredFace{
		PersonType: personType,
		PersonID:   personID,
		Embedding:  faceindex.Normalize(det.Embedding),
		Quality:    &quality,
		ImagePath:  imagePath,
	})
	if err != nil {
		return fmt.Errorf("failed to store embedding: %w", err)
	}
	return nil
}
