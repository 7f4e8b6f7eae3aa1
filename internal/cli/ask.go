// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/jeranaias/deepchat-tui/internal/deepseek"
)

// =============================================================================
// ASK COMMAND
// =============================================================================

// HandleAsk streams a single answer to stdout. Nothing is persisted; use
// the TUI for conversations worth keeping.
func HandleAsk(args *ArgParser) error {
	query := strings.TrimSpace(args.Query())
	if query == "" {
		return errors.New("usage: deepchat ask \"your question\"")
	}

	env, err := OpenEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	if !env.Client.IsConfigured() {
		return errors.New("no API key configured; run: deepchat setup")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	messages := []deepseek.ChatMessage{deepseek.NewUserMessage(query)}
	_, err = env.Client.ChatStream(ctx, messages, func(delta, _ string) {
		fmt.Print(delta)
	})
	if err != nil {
		var streamErr *deepseek.StreamError
		if errors.As(err, &streamErr) && streamErr.Partial != "" {
			fmt.Println()
		}
		return err
	}

	fmt.Println()
	return nil
}
