// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses arguments and implements the non-TUI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdSetup
	CmdSessions
	CmdStatus
	CmdVersion
	CmdHelp
)

const usageText = `deepchat - a terminal client for DeepSeek chat

Usage:
  deepchat                      Start the TUI (default)
  deepchat ask "question"       Ask a single question, streamed to stdout
  deepchat setup                Configure and verify your API key
  deepchat setup show           Show key status
  deepchat setup clear          Remove the stored key
  deepchat sessions list        List saved sessions
  deepchat sessions show <id>   Print a session transcript
  deepchat sessions export <id> Export a session
    --format md|json            Export format (default: md)
    --out <file>                Write to a file instead of stdout
  deepchat sessions delete <id> Delete a session
    --confirm                   Required confirmation flag
  deepchat status               Show configuration and storage status
    --json                      Machine-readable output
  deepchat version              Show version information
  deepchat help                 Show this help

Environment:
  DEEPSEEK_API_BASE    Override api.base_url
  DEEPSEEK_MODEL       Override api.model
  DEEPCHAT_CONFIG      Alternate config file path
  DEEPCHAT_STORAGE     Storage backend: file or sqlite
  DEEPCHAT_STORAGE_DIR Alternate state directory
  DEEPCHAT_THEME       UI theme: auto, dark, light
`

// Parse reads os.Args and returns the command plus its parsed arguments.
func Parse() (Command, *ArgParser) {
	raw := os.Args[1:]
	if len(raw) == 0 {
		return CmdTUI, NewArgParser(nil)
	}

	cmd := raw[0]
	rest := NewArgParser(raw[1:])

	switch cmd {
	case "ask":
		return CmdAsk, rest
	case "setup", "init":
		return CmdSetup, rest
	case "session", "sessions":
		return CmdSessions, rest
	case "status", "s":
		return CmdStatus, rest
	case "version", "-v", "--version":
		return CmdVersion, rest
	case "help", "-h", "--help":
		return CmdHelp, rest
	default:
		// Unknown words fall through to the TUI, flags included.
		return CmdTUI, NewArgParser(raw)
	}
}

// HandleHelp prints usage.
func HandleHelp() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion(args *ArgParser) {
	if args.BoolFlag("json") {
		out, _ := json.MarshalIndent(map[string]string{
			"version":   Version,
			"commit":    GitCommit,
			"buildDate": BuildDate,
			"goVersion": runtime.Version(),
			"platform":  runtime.GOOS + "/" + runtime.GOARCH,
		}, "", "  ")
		fmt.Println(string(out))
		return
	}
	fmt.Printf("deepchat %s (%s, built %s, %s)\n", Version, GitCommit, BuildDate, runtime.Version())
}
