// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/deepchat-tui/internal/config"
)

// =============================================================================
// STATUS COMMAND
// =============================================================================

// statusReport is the machine-readable status shape.
type statusReport struct {
	ConfigPath    string `json:"configPath"`
	StateDir      string `json:"stateDir"`
	Backend       string `json:"backend"`
	BaseURL       string `json:"baseUrl"`
	Model         string `json:"model"`
	KeyConfigured bool   `json:"keyConfigured"`
	SessionCount  int    `json:"sessionCount"`
}

// HandleStatus prints configuration and storage status.
func HandleStatus(args *ArgParser) error {
	env, err := OpenEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	configPath, _ := config.Path()
	stateDir, _ := env.Cfg.StateDir()

	report := statusReport{
		ConfigPath:    configPath,
		StateDir:      stateDir,
		Backend:       env.Cfg.Storage.Backend,
		BaseURL:       env.Cfg.API.BaseURL,
		Model:         env.Cfg.API.Model,
		KeyConfigured: env.Creds.IsConfigured(),
		SessionCount:  len(env.Repo.List()),
	}

	if args.BoolFlag("json") {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println("deepchat status")
	fmt.Println()
	fmt.Printf("  Config:    %s\n", report.ConfigPath)
	fmt.Printf("  State dir: %s\n", report.StateDir)
	fmt.Printf("  Backend:   %s\n", report.Backend)
	fmt.Printf("  API base:  %s\n", report.BaseURL)
	fmt.Printf("  Model:     %s\n", report.Model)
	if report.KeyConfigured {
		fmt.Println("  API key:   configured")
	} else {
		fmt.Println("  API key:   not configured (run: deepchat setup)")
	}
	fmt.Printf("  Sessions:  %d\n", report.SessionCount)
	return nil
}
