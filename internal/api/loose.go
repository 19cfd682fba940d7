// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Loose is a string field the backend sometimes sends as a number.
type Loose string

// UnmarshalJSON accepts a JSON string, number, bool or null.
func (l *Loose) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Loose(s)
		return nil
	}
	*l = Loose(strings.Trim(string(b), `"`))
	return nil
}

func (l Loose) String() string {
	return string(l)
}
