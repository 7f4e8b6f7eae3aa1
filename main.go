// deepchat - a terminal client for DeepSeek chat.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/jeranaias/deepchat-tui/internal/chat"
	"github.com/jeranaias/deepchat-tui/internal/cli"
	"github.com/jeranaias/deepchat-tui/internal/store"
	"github.com/jeranaias/deepchat-tui/internal/ui/chatview"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = runTUI()
	case cli.CmdAsk:
		err = cli.HandleAsk(args)
	case cli.CmdSetup:
		err = cli.HandleSetup(args)
	case cli.CmdSessions:
		err = cli.HandleSessions(args)
	case cli.CmdStatus:
		err = cli.HandleStatus(args)
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.HandleHelp()
	default:
		err = runTUI()
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runTUI wires storage, the API client, and the orchestrator, then hands
// the terminal to Bubble Tea.
func runTUI() error {
	env, err := cli.OpenEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	orch := chat.NewOrchestrator(env.Repo, env.Client)

	// External writers (another deepchat process) show up on the next
	// refresh; the watcher just makes that immediate.
	if env.Cfg.Storage.WatchExternal && env.FileStore != nil {
		watcher, err := store.NewWatcher(env.FileStore, orch.Refresh)
		if err != nil {
			log.Warn("tui: state watch unavailable", "err", err)
		} else {
			defer watcher.Close()
		}
	}

	m := chatview.New(orch, env.Creds, env.Cfg)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui failed: %w", err)
	}
	return nil
}
