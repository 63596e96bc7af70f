package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"copyscan/internal/config"
	"copyscan/pkg/copyscan"
	"copyscan/pkg/copyscan/classifier"
	"copyscan/pkg/copyscan/oracle"
	"copyscan/pkg/copyscan/storage"
	"copyscan/pkg/logger"
	"copyscan/pkg/models"
)

func newDetectCommand() *cobra.Command {
	var asJSON bool
	var save bool

	cmd := &cobra.Command{
		Use:   "detect <audio-file>",
		Short: "Run the classifier pipeline over an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}

			cfg := config.Load()
			opts, db, err := buildOptions(cfg, save)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			loader := classifier.StartLoader(cfg.ModelPath, cfg.ClassMapPath)
			template, err := loader.Await(time.Duration(cfg.ModelWaitSeconds) * time.Second)
			if err != nil {
				return fmt.Errorf("classifier unavailable: %w (try the timeline command)", err)
			}
			defer template.Close()

			svc, err := copyscan.NewService(append(opts, copyscan.WithTemplate(template))...)
			if err != nil {
				return err
			}
			defer svc.Close()

			result := svc.Detect(cmd.Context(), path)
			return printResult(cmd, result, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the result to the database")
	return cmd
}

func newTimelineCommand() *cobra.Command {
	var asJSON bool
	var save bool

	cmd := &cobra.Command{
		Use:   "timeline <audio-file>",
		Short: "Run the chunked fallback segmenter (no classifier needed)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if _, err := os.Stat(path); err != nil {
				return fmt.Errorf("cannot read %s: %w", path, err)
			}

			cfg := config.Load()
			opts, db, err := buildOptions(cfg, save)
			if err != nil {
				return err
			}
			if db != nil {
				defer db.Close()
			}

			svc, err := copyscan.NewService(opts...)
			if err != nil {
				return err
			}
			defer svc.Close()

			result := svc.DetectTimeline(cmd.Context(), path)
			return printResult(cmd, result, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw result as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the result to the database")
	return cmd
}

func newResultsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "results",
		Short: "List stored detection results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := storage.NewDBClientWithPath(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			records, err := db.ListResults(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results stored yet.")
				return nil
			}

			for _, rec := range records {
				verdict := "unknown"
				if rec.Copyrighted != nil {
					verdict = fmt.Sprintf("%t", *rec.Copyrighted)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-30s method=%-8s copyrighted=%-7s segments=%d\n",
					rec.CreatedAt.Format("2006-01-02 15:04"), rec.FileName, rec.Method, verdict, len(rec.Segments))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results to show")
	return cmd
}

// buildOptions assembles the shared service options from the environment
// config. With save, results also go to the database; the returned client is
// non-nil in that case and owned by the caller.
func buildOptions(cfg *config.Config, save bool) ([]copyscan.Option, *storage.DBClient, error) {
	if cfg.ACRAccessKey == "" || cfg.ACRSecret == "" {
		return nil, nil, errors.New("ACR_ACCESS_KEY and ACR_ACCESS_SECRET must be set")
	}

	opts := []copyscan.Option{
		copyscan.WithLogger(logger.GetLogger()),
		copyscan.WithOracle(oracle.NewClient(cfg.ACRAccessKey, cfg.ACRSecret, cfg.ACRHost)),
		copyscan.WithTempDir(cfg.TempDir),
		copyscan.WithFrameThresholds(cfg.ConfidenceThreshold, cfg.BackgroundMusicThreshold),
		copyscan.WithMergeParams(cfg.MergeGap, cfg.MinSegmentDuration),
		copyscan.WithBoundaryParams(cfg.BoundarySampleRate, cfg.ChromaThreshold, cfg.MinBoundaryGap),
		copyscan.WithProbeParams(cfg.ProbeInterval, cfg.ProbeWindow, cfg.ProbeTailFloor),
		copyscan.WithFallbackParams(cfg.ChunkSeconds, cfg.OverlapSeconds, cfg.FallbackMergeGap),
	}

	if !save {
		return opts, nil, nil
	}
	db, err := storage.NewDBClientWithPath(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return append(opts, copyscan.WithStore(db)), db, nil
}

func printResult(cmd *cobra.Command, result models.DetectionResult, asJSON bool) error {
	out := cmd.OutOrStdout()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if result.Error != "" {
		return fmt.Errorf("detection failed: %s", result.Error)
	}

	if result.Copyrighted != nil && *result.Copyrighted {
		fmt.Fprintf(out, "Copyrighted music detected (%d segments, method=%s):\n", len(result.Segments), result.Method)
		for _, seg := range result.Segments {
			fmt.Fprintf(out, "  %8.2fs - %8.2fs  %s - %s\n", seg.Start, seg.End, seg.Track.Artist, seg.Track.Title)
		}
	} else {
		fmt.Fprintf(out, "No copyrighted music detected (method=%s).\n", result.Method)
	}
	return nil
}
