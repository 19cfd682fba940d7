// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the secondme packages.
//
// # Key Functions
//
// File Operations:
//   - WriteAtomic: crash-safe streaming write via temp file and rename
//   - AtomicWriteFile: WriteAtomic for a byte slice
//
// Text:
//   - Ellipsize: rune-aware truncation with a single "…" suffix
//   - TruncateWidth, PadRight: display-width aware layout for tables
//   - FirstLine: first non-empty line of a multi-line string
//
// # Usage
//
//	title := util.Ellipsize(firstMessage, 30)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
