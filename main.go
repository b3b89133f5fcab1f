package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"squish/batch"
	"squish/config"
	"squish/export"
	"squish/history"
	"squish/logger"
	"squish/models"

	"github.com/google/uuid"
)

func main() {
	quality := flag.Int("quality", 80, "output quality 0-100 (ignored by lossless formats)")
	format := flag.String("format", "jpeg", "output format: jpeg, png or gif")
	maxWidth := flag.Int("max-width", 0, "maximum output width in pixels (0 = unconstrained)")
	maxHeight := flag.Int("max-height", 0, "maximum output height in pixels (0 = unconstrained)")
	lockAspect := flag.Bool("lock-aspect", true, "preserve aspect ratio when clamping dimensions")
	strip := flag.Bool("strip-metadata", true, "drop source metadata from outputs")
	progressive := flag.Bool("progressive", false, "request progressive output (jpeg only)")
	outDir := flag.String("out", config.GetOutputDir(), "directory for compressed outputs")
	backend := flag.String("export-backend", "directory", "destination backend: directory, s3, gcs or sftp")
	workers := flag.Int("workers", config.GetMaxWorkers(), "execution pool size")
	verbose := flag.Bool("verbose", false, "log per-item progress")
	flag.Parse()

	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] file...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}
	if !*verbose {
		logger.SetLevel(logger.INFO)
	}

	f, err := models.ParseFormat(*format)
	if err != nil {
		logger.Fatalf("Invalid format: %v", err)
	}
	switch *backend {
	case "directory", "s3", "gcs", "sftp":
	default:
		logger.Fatalf("Invalid export backend: %q", *backend)
	}
	opts := &models.Options{
		Quality:       *quality,
		Format:        f,
		MaxWidth:      *maxWidth,
		MaxHeight:     *maxHeight,
		LockAspect:    *lockAspect,
		StripMetadata: *strip,
		Progressive:   *progressive,
	}

	// History is best-effort: a missing store never blocks compression.
	logger.Debug("Initializing history database")
	historyOK := true
	if err := history.Init(config.GetHistoryDBPath()); err != nil {
		logger.Warnf("History store unavailable: %v", err)
		historyOK = false
	} else {
		defer history.Close()
	}

	subs := make([]models.Submission, 0, len(inputs))
	for _, path := range inputs {
		subs = append(subs, models.Submission{
			ID:   uuid.NewString(),
			Path: path,
			Name: filepath.Base(path),
		})
	}

	sched := batch.NewScheduler(*workers)
	defer sched.Close()
	sched.Subscribe(func(u models.ItemUpdate, b models.BatchUpdate) {
		logger.Debugf("item %s: %d%% (%s) | batch %d%% (%d/%d)",
			u.ID, u.Progress, u.Status, b.Overall, b.Completed, b.Total)
	})

	// Ctrl-C cancels the whole batch.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("Interrupt received, cancelling batch")
		sched.Cancel()
	}()

	logger.Infof("Compressing %d files to %s (quality=%d)", len(subs), f, opts.Quality)
	if err := sched.Submit(subs, opts); err != nil {
		logger.Fatalf("Failed to submit batch: %v", err)
	}
	sched.Wait()

	items, _ := sched.Snapshot()
	for _, item := range items {
		switch item.Status {
		case models.StatusComplete:
			if err := writeOutput(*backend, *outDir, item, f); err != nil {
				logger.Errorf("Failed to write output for %s: %v", item.Name, err)
				continue
			}
			if historyOK {
				history.Add(history.Entry{
					ID:             item.ID,
					Timestamp:      time.Now().UnixMilli(),
					OriginalName:   item.Name,
					OriginalSize:   item.Result.OriginalSize,
					CompressedSize: item.Result.CompressedSize,
					Format:         item.Result.Format,
					Quality:        opts.Quality,
				})
			}
			logger.Infof("%s: %d -> %d bytes (%.1f%% saved, %dx%d)",
				item.Name, item.Result.OriginalSize, item.Result.CompressedSize,
				item.Result.Ratio, item.Result.Width, item.Result.Height)
		case models.StatusError:
			logger.Errorf("%s: %s", item.Name, item.Err)
		case models.StatusCancelled:
			logger.Warnf("%s: cancelled", item.Name)
		}
	}

	summary := sched.Summary()
	logger.Infof("Batch finished: %s (%d/%d succeeded)", summary, summary.Succeeded, summary.Total)
	if summary.Failed > 0 || summary.Cancelled > 0 {
		os.Exit(1)
	}
}

// writeOutput stores one compressed result on the selected backend,
// swapping the source extension for the target format's.
func writeOutput(backend, outDir string, item models.Item, f models.Format) error {
	name := strings.TrimSuffix(item.Name, filepath.Ext(item.Name)) + "." + f.Extension()
	accessInfo := exportAccessInfo(backend, outDir, name)
	return export.Write(context.Background(), accessInfo, bytes.NewReader(item.Result.Data), backend)
}

// exportAccessInfo builds the per-call credential map for a backend.
// Remote backends take their settings from SQUISH_S3_*, SQUISH_GCS_*
// and SQUISH_SFTP_* environment variables.
func exportAccessInfo(backend, outDir, name string) map[string]string {
	switch backend {
	case "s3":
		return map[string]string{
			"accessKey": os.Getenv("SQUISH_S3_ACCESS_KEY"),
			"secretKey": os.Getenv("SQUISH_S3_SECRET_KEY"),
			"region":    os.Getenv("SQUISH_S3_REGION"),
			"bucket":    os.Getenv("SQUISH_S3_BUCKET"),
			"key":       path.Join(os.Getenv("SQUISH_S3_PREFIX"), name),
		}
	case "gcs":
		return map[string]string{
			"bucket":          os.Getenv("SQUISH_GCS_BUCKET"),
			"object":          path.Join(os.Getenv("SQUISH_GCS_PREFIX"), name),
			"credentialsJSON": os.Getenv("SQUISH_GCS_CREDENTIALS"),
		}
	case "sftp":
		return map[string]string{
			"host":       os.Getenv("SQUISH_SFTP_HOST"),
			"port":       os.Getenv("SQUISH_SFTP_PORT"),
			"user":       os.Getenv("SQUISH_SFTP_USER"),
			"password":   os.Getenv("SQUISH_SFTP_PASSWORD"),
			"privateKey": os.Getenv("SQUISH_SFTP_KEY"),
			"remotePath": path.Join(os.Getenv("SQUISH_SFTP_DIR"), name),
		}
	default:
		return map[string]string{
			"baseDir":  outDir,
			"filename": name,
		}
	}
}
