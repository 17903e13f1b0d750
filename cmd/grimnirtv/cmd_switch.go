/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/grimnir_tv/internal/config"
	"github.com/friendsincode/grimnir_tv/internal/override"
)

var switchCmd = &cobra.Command{
	Use:   "switch {up|down|CHANNEL}",
	Short: "Request a channel switch",
	Long:  "Write a channel switch request for a running playout process. \"up\" and \"down\" step through the lineup with wraparound; a channel name switches directly.",
	Args:  cobra.ExactArgs(1),
	RunE:  runSwitch,
}

func runSwitch(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	lineup, err := config.LoadLineup(cfg.LineupPath)
	if err != nil {
		return fmt.Errorf("load lineup: %w", err)
	}

	target := args[0]
	switch target {
	case "up", "down":
		overrides := override.NewChannel(cfg, logger)
		current, ok := overrides.CurrentChannel()
		if !ok {
			current = lineup.Channels[0].Name
		}
		offset := 1
		if target == "down" {
			offset = -1
		}
		target = lineup.Next(current, offset).Name
	default:
		if _, ok := lineup.Find(target); !ok {
			return fmt.Errorf("channel %q not in lineup (have: %v)", target, lineup.Names())
		}
	}

	if err := override.RequestSwitch(cfg.ChannelRequestFile, target); err != nil {
		return fmt.Errorf("write switch request: %w", err)
	}

	fmt.Printf("switch to %s requested\n", target)
	return nil
}
