/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logbuffer

import (
	"testing"
	"time"
)

func entry(level, component, message string) LogEntry {
	return LogEntry{Timestamp: time.Now(), Level: level, Component: component, Message: message}
}

func TestRingBufferWrapsOldestFirst(t *testing.T) {
	b := New(3)
	b.Add(entry("info", "engine", "one"))
	b.Add(entry("info", "engine", "two"))
	b.Add(entry("info", "engine", "three"))
	b.Add(entry("info", "engine", "four"))

	all := b.GetAll()
	if len(all) != 3 {
		t.Fatalf("got %d entries, want capacity 3", len(all))
	}
	if all[0].Message != "two" || all[2].Message != "four" {
		t.Fatalf("oldest entry not evicted: %+v", all)
	}
}

func TestQueryFilters(t *testing.T) {
	b := New(10)
	b.Add(entry("info", "engine", "evaluating segment"))
	b.Add(entry("warn", "filler", "empty filler manifest"))
	b.Add(entry("error", "player", "player exited non-zero"))

	if got := b.Query(QueryParams{Level: "warn"}); len(got) != 1 || got[0].Component != "filler" {
		t.Fatalf("level filter: %+v", got)
	}
	if got := b.Query(QueryParams{Component: "player"}); len(got) != 1 {
		t.Fatalf("component filter: %+v", got)
	}
	if got := b.Query(QueryParams{Search: "MANIFEST"}); len(got) != 1 {
		t.Fatalf("search must be case-insensitive: %+v", got)
	}
	if got := b.Query(QueryParams{Descending: true, Limit: 2}); len(got) != 2 || got[0].Component != "player" {
		t.Fatalf("descending with limit: %+v", got)
	}
}

func TestWriterParsesZerologJSON(t *testing.T) {
	b := New(10)
	w := NewWriter(b, nil)

	line := `{"level":"info","component":"engine","show":"Movie","message":"playing"}` + "\n"
	if _, err := w.Write([]byte(line)); err != nil {
		t.Fatalf("write: %v", err)
	}

	all := b.GetAll()
	if len(all) != 1 {
		t.Fatalf("got %d entries, want 1", len(all))
	}
	got := all[0]
	if got.Level != "info" || got.Component != "engine" || got.Message != "playing" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.Fields["show"] != "Movie" {
		t.Fatalf("extra fields not captured: %+v", got.Fields)
	}
}

func TestWriterIgnoresNonJSON(t *testing.T) {
	b := New(10)
	w := NewWriter(b, nil)

	if _, err := w.Write([]byte("plain text line\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := b.GetAll(); len(got) != 0 {
		t.Fatalf("non-JSON input must not be buffered: %+v", got)
	}
}
