// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"testing"
)

func TestArgParserFlags(t *testing.T) {
	p := NewArgParser([]string{"export", "abc123", "--format", "json", "--out=report.json", "--confirm"})

	if p.Subcommand() != "export" {
		t.Errorf("Subcommand() = %q", p.Subcommand())
	}
	if p.Positional(1) != "abc123" {
		t.Errorf("Positional(1) = %q", p.Positional(1))
	}
	if p.Flag("format") != "json" {
		t.Errorf("Flag(format) = %q", p.Flag("format"))
	}
	if p.Flag("out") != "report.json" {
		t.Errorf("Flag(out) = %q", p.Flag("out"))
	}
	if !p.BoolFlag("confirm") {
		t.Error("BoolFlag(confirm) should be set")
	}
}

func TestArgParserExplicitBool(t *testing.T) {
	p := NewArgParser([]string{"--json=false", "--verbose=true"})

	if p.BoolFlag("json") {
		t.Error("--json=false should parse as false")
	}
	if !p.BoolFlag("verbose") {
		t.Error("--verbose=true should parse as true")
	}
}

func TestArgParserDefaults(t *testing.T) {
	p := NewArgParser(nil)

	if p.Subcommand() != "" {
		t.Errorf("empty args: Subcommand() = %q", p.Subcommand())
	}
	if p.FlagOrDefault("format", "md") != "md" {
		t.Error("FlagOrDefault should return the default")
	}
	if p.Positional(5) != "" {
		t.Error("out-of-range positional should be empty")
	}
}

func TestArgParserQuery(t *testing.T) {
	p := NewArgParser([]string{"what", "is", "a", "goroutine"})

	if got := p.Query(); got != "what is a goroutine" {
		t.Errorf("Query() = %q", got)
	}
}
