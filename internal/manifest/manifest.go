/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package manifest loads filler/ident clip manifests.
//
// A manifest is the XML file produced by the archive scanner: a <files> root
// with one <file name="..."> element per clip and a <length> child holding
// the clip duration in seconds.
package manifest

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_tv/internal/models"
)

type xmlManifest struct {
	XMLName xml.Name  `xml:"files"`
	Files   []xmlFile `xml:"file"`
}

type xmlFile struct {
	Name   string `xml:"name,attr"`
	Length string `xml:"length"`
}

// Load reads the manifest at path and returns its clips in file order.
// A missing file yields an empty list, not an error: callers must treat "no
// filler available" as a handled state. Records without a usable path or
// duration are skipped with a warning.
func Load(path string, logger zerolog.Logger) ([]models.FillerItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("manifest", path).Msg("filler manifest not found, treating as empty")
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var doc xmlManifest
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	items := make([]models.FillerItem, 0, len(doc.Files))
	for _, f := range doc.Files {
		if f.Name == "" {
			logger.Warn().Str("manifest", path).Msg("skipping manifest entry without a name")
			continue
		}
		raw := strings.TrimSpace(f.Length)
		duration, err := strconv.ParseFloat(raw, 64)
		if err != nil || duration <= 0 {
			logger.Warn().
				Str("manifest", path).
				Str("clip", f.Name).
				Str("length", raw).
				Msg("skipping manifest entry with invalid duration")
			continue
		}
		items = append(items, models.FillerItem{Path: f.Name, Duration: duration})
	}

	return items, nil
}
