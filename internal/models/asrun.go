/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// AsRunEntry is one row of the as-run log: what actually aired, when, and
// how the attempt ended. This is the operator's record for diagnosing drift
// and missed content.
type AsRunEntry struct {
	ID            string `gorm:"type:uuid;primaryKey"`
	RunID         string `gorm:"type:uuid;index"`
	Channel       string `gorm:"type:varchar(64);index"`
	ShowName      string
	ContentPath   string `gorm:"type:text"`
	SlotStart     time.Time
	AiredAt       time.Time
	OffsetSeconds float64
	RunSeconds    float64
	LateSeconds   float64
	Status        ExitStatus `gorm:"type:varchar(16)"`
	Filler        bool
	CreatedAt     time.Time
}
