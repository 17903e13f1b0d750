/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_tv/internal/manifest"
	"github.com/friendsincode/grimnir_tv/internal/models"
	"github.com/friendsincode/grimnir_tv/internal/schedule"
)

var validateCheckPaths bool

var validateCmd = &cobra.Command{
	Use:   "validate SCHEDULE_FILE",
	Short: "Validate a schedule file",
	Long:  "Parse a schedule file the way the playout loop would and report its segments, overlaps and missing content.",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateCheckPaths, "check-paths", false, "verify that content files and filler manifests exist")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	segments, err := schedule.LoadFile(args[0], logger)
	if err != nil {
		return err
	}

	problems := 0
	var totalSec float64
	for i, seg := range segments {
		totalSec += seg.SlotDurationSec

		if i > 0 && seg.StartTime.Before(segments[i-1].EndTime()) {
			fmt.Printf("OVERLAP: %q at %s starts before %q ends (%s)\n",
				seg.ShowName, seg.StartTime.Format("15:04:05"),
				segments[i-1].ShowName, segments[i-1].EndTime().Format("15:04:05"))
			problems++
		}

		if seg.Video.Duration > seg.SlotDurationSec {
			fmt.Printf("WARN: %q content (%.0fs) longer than slot (%.0fs), will be cut\n",
				seg.ShowName, seg.Video.Duration, seg.SlotDurationSec)
		}

		if validateCheckPaths {
			problems += checkSegmentPaths(seg)
		}
	}

	fmt.Printf("%d segments, %.1f hours total", len(segments), totalSec/3600)
	if len(segments) > 0 {
		fmt.Printf(", %s to %s",
			segments[0].StartTime.Format("15:04:05"),
			segments[len(segments)-1].EndTime().Format("15:04:05"))
	}
	fmt.Println()

	if problems > 0 {
		return fmt.Errorf("%d problems found", problems)
	}
	fmt.Println("schedule OK")
	return nil
}

func checkSegmentPaths(seg models.ScheduleSegment) int {
	problems := 0

	if seg.Video.Path != "" && !models.IsRemotePath(seg.Video.Path) {
		path := joinRoot(seg.ContentRoot, seg.Video.Path)
		if _, err := os.Stat(path); err != nil {
			fmt.Printf("MISSING: %q content %s\n", seg.ShowName, path)
			problems++
		}
	}

	if seg.FillerManifest != "" {
		path := joinRoot(seg.ContentRoot, seg.FillerManifest)
		items, err := manifest.Load(path, logger)
		if err != nil {
			fmt.Printf("BAD MANIFEST: %s: %v\n", path, err)
			problems++
		} else if items == nil {
			fmt.Printf("MISSING: filler manifest %s\n", path)
			problems++
		}
	}

	return problems
}

func joinRoot(root, path string) string {
	if root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
