// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits a subcommand's arguments into flags and positionals.
//
// Accepted forms are --name value, --name=value, -n value and bare
// switches. Only names declared as switches are guaranteed never to take
// the following word as a value. "--" ends flag parsing.
//
//	p := NewArgParser([]string{"show", "abc", "--lines", "50", "--json"}, "json")
//	p.Subcommand()   // "show"
//	p.Positional(1)  // "abc"
//	p.Flag("lines")  // "50"
//	p.BoolFlag("json") // true
type ArgParser struct {
	values     map[string]string
	switches   map[string]bool
	positional []string
}

// NewArgParser parses raw, treating the names in switches as booleans.
func NewArgParser(raw []string, switches ...string) *ArgParser {
	p := &ArgParser{
		values:   map[string]string{},
		switches: map[string]bool{},
	}
	declared := make(map[string]bool, len(switches))
	for _, s := range switches {
		declared[flagName(s)] = true
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		switch {
		case arg == "--":
			p.positional = append(p.positional, raw[i+1:]...)
			return p
		case len(arg) < 2 || arg[0] != '-':
			p.positional = append(p.positional, arg)
		default:
			name, value, hasValue := strings.Cut(flagName(arg), "=")
			switch {
			case hasValue && declared[name]:
				p.switches[name] = value != "false" && value != "0" && value != "no"
			case hasValue:
				p.values[name] = value
			case !declared[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-"):
				i++
				p.values[name] = raw[i]
			default:
				p.switches[name] = true
			}
		}
	}
	return p
}

func flagName(s string) string { return strings.TrimLeft(s, "-") }

// Subcommand is the first positional, lowercased.
func (p *ArgParser) Subcommand() string {
	return strings.ToLower(p.Positional(0))
}

// Flag returns the first of names that was given a value.
func (p *ArgParser) Flag(names ...string) string {
	for _, n := range names {
		if v, ok := p.values[flagName(n)]; ok {
			return v
		}
	}
	return ""
}

// FlagIntOrDefault parses the named flag as an int, falling back to def
// when it is missing or not a number.
func (p *ArgParser) FlagIntOrDefault(name string, def int) int {
	n, err := strconv.Atoi(p.Flag(name))
	if err != nil {
		return def
	}
	return n
}

// BoolFlag reports whether any of names was switched on.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, n := range names {
		if p.switches[flagName(n)] {
			return true
		}
	}
	return false
}

// HasFlag reports whether name appeared at all.
func (p *ArgParser) HasFlag(name string) bool {
	name = flagName(name)
	_, v := p.values[name]
	_, s := p.switches[name]
	return v || s
}

// Positional returns positional index, or "". Index 0 is the subcommand.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positionals from index on.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// PositionalCount is the number of positionals, subcommand included.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// Rest joins the positionals from index on with single spaces.
func (p *ArgParser) Rest(index int) string {
	return strings.Join(p.PositionalFrom(index), " ")
}

// requireID returns the positional at index or a usage error.
func requireID(p *ArgParser, index int, what, usage string) (string, error) {
	id := strings.TrimSpace(p.Positional(index))
	if id == "" {
		return "", ErrMissingArgument(what, usage)
	}
	return id, nil
}
