// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// =============================================================================
// SETUP COMMAND
// =============================================================================

// HandleSetup configures the API key. The key is read without echo when
// stdin is a terminal, verified against the API, and only then stored.
//
// Subcommands:
//   - setup: prompt for a key
//   - setup show: report whether a key is stored
//   - setup clear: remove the stored key
func HandleSetup(args *ArgParser) error {
	env, err := OpenEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	switch args.Subcommand() {
	case "show":
		return showKeyStatus(env)
	case "clear":
		env.Creds.Clear()
		fmt.Println("API key removed.")
		return nil
	case "":
		return runKeyPrompt(env)
	default:
		return fmt.Errorf("unknown setup subcommand: %s", args.Subcommand())
	}
}

func runKeyPrompt(env *Env) error {
	fmt.Println("deepchat setup")
	fmt.Println()
	fmt.Println("Get an API key at https://platform.deepseek.com and paste it below.")
	fmt.Println("The key is verified against the API before being stored.")
	fmt.Println()
	fmt.Print("API key: ")

	key, err := readSecret()
	if err != nil {
		return fmt.Errorf("could not read key: %w", err)
	}
	fmt.Println()

	if err := env.Creds.Save(context.Background(), key); err != nil {
		return err
	}

	fmt.Printf("Key verified and stored (%s).\n", maskKey(key))
	return nil
}

func showKeyStatus(env *Env) error {
	key, ok := env.Creds.APIKey()
	if !ok {
		fmt.Println("No API key stored. Run: deepchat setup")
		return nil
	}
	fmt.Printf("API key stored: %s\n", maskKey(key))
	return nil
}

// readSecret reads a line without echo on a terminal, falling back to plain
// line reading when stdin is piped.
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(raw)), nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return "", scanner.Err()
	}
	return strings.TrimSpace(scanner.Text()), nil
}

// maskKey shows just enough of a key to recognize it.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
