// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json")
	data := []byte(`{"sessions":[]}`)

	if err := AtomicWriteFile(path, data, 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", string(content), string(data))
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store", "deep", "test.json")
	if err := AtomicWriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_OverwritesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")

	if err := AtomicWriteFile(path, []byte("initial"), 0600); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0600); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("got %q, want %q", content, "updated")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

func TestWriteAtomic_FailedFillKeepsOld(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := AtomicWriteFile(path, []byte("old"), 0600); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	boom := errors.New("encode failed")
	err := WriteAtomic(path, 0600, func(w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want %v", err, boom)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "old" {
		t.Errorf("got %q, want %q", content, "old")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp file left behind: %d entries", len(entries))
	}
}

// =============================================================================
// TEXT TESTS
// =============================================================================

func TestEllipsize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "0123456789", 30, "0123456789"},
		{"exact", strings.Repeat("a", 30), 30, strings.Repeat("a", 30)},
		{"long", "abcdefghijklmnopqrstuvwxyz0123456789", 30, "abcdefghijklmnopqrstuvwxyz0123" + Ellipsis},
		{"multibyte", "日本語のテキストです", 3, "日本語" + Ellipsis},
		{"zero", "abc", 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ellipsize(tt.in, tt.max); got != tt.want {
				t.Errorf("Ellipsize(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestEllipsize_DecomposedAccents(t *testing.T) {
	// "e" + combining acute counts as one character.
	in := "cafe\u0301"
	if got := Ellipsize(in, 4); got != in {
		t.Errorf("Ellipsize(%q, 4) = %q, want input unchanged", in, got)
	}

	long := strings.Repeat("e\u0301", 31)
	want := strings.Repeat("\u00e9", 30) + Ellipsis
	if got := Ellipsize(long, 30); got != want {
		t.Errorf("Ellipsize(%q, 30) = %q, want %q", long, got, want)
	}
}

func TestPadRight(t *testing.T) {
	got := PadRight("abc", 6)
	if got != "abc   " {
		t.Errorf("PadRight = %q", got)
	}
	got = PadRight("日本語テキスト", 6)
	if w := runewidth.StringWidth(got); w != 6 {
		t.Errorf("PadRight width = %d, want 6 (%q)", w, got)
	}
}

func TestFirstLine(t *testing.T) {
	if got := FirstLine("\n  \n  hello \nworld"); got != "hello" {
		t.Errorf("FirstLine = %q", got)
	}
	if got := FirstLine(""); got != "" {
		t.Errorf("FirstLine(empty) = %q", got)
	}
}
