/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Channel describes one entry in the station lineup.
type Channel struct {
	Name        string `yaml:"name"`
	ContentRoot string `yaml:"content_root"`
}

// Lineup is the ordered channel list. Channel up/down wraps around this
// order, mirroring the generator's channel_order.
type Lineup struct {
	Channels []Channel `yaml:"channels"`
}

// LoadLineup reads the YAML lineup file.
func LoadLineup(path string) (*Lineup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lineup %s: %w", path, err)
	}

	var lineup Lineup
	if err := yaml.Unmarshal(data, &lineup); err != nil {
		return nil, fmt.Errorf("parse lineup %s: %w", path, err)
	}

	if len(lineup.Channels) == 0 {
		return nil, fmt.Errorf("lineup %s defines no channels", path)
	}
	for i, ch := range lineup.Channels {
		if ch.Name == "" {
			return nil, fmt.Errorf("lineup %s: channel %d has no name", path, i)
		}
	}

	return &lineup, nil
}

// Names returns the channel names in lineup order.
func (l *Lineup) Names() []string {
	names := make([]string, len(l.Channels))
	for i, ch := range l.Channels {
		names[i] = ch.Name
	}
	return names
}

// Find returns the channel with the given name.
func (l *Lineup) Find(name string) (Channel, bool) {
	for _, ch := range l.Channels {
		if ch.Name == name {
			return ch, true
		}
	}
	return Channel{}, false
}

// Next returns the channel offset steps away from current in lineup order,
// wrapping at both ends. An unknown current channel resolves to index 0.
func (l *Lineup) Next(current string, offset int) Channel {
	index := 0
	for i, ch := range l.Channels {
		if ch.Name == current {
			index = i
			break
		}
	}
	n := len(l.Channels)
	return l.Channels[((index+offset)%n+n)%n]
}
