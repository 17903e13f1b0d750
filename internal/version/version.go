/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version holds build metadata injected at link time.
package version

// Version is overridden via -ldflags at release build time.
var Version = "0.1.0-dev"
