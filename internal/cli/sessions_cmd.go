// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/deepchat-tui/internal/util"
)

// =============================================================================
// SESSIONS COMMAND
// =============================================================================

// HandleSessions manages stored chat sessions from the command line.
func HandleSessions(args *ArgParser) error {
	env, err := OpenEnv()
	if err != nil {
		return err
	}
	defer env.Close()

	switch args.Subcommand() {
	case "", "list":
		return listSessions(env)
	case "show":
		return showSession(env, args.Positional(1))
	case "export":
		return exportSession(env, args)
	case "delete":
		return deleteSession(env, args)
	default:
		return fmt.Errorf("unknown sessions subcommand: %s", args.Subcommand())
	}
}

func listSessions(env *Env) error {
	sessions := env.Repo.List()
	if len(sessions) == 0 {
		fmt.Println("No saved sessions.")
		return nil
	}

	currentID, _ := env.Repo.CurrentID()

	fmt.Printf("%s %s %s %s\n",
		util.PadRight("ID", 20),
		util.PadRight("TITLE", 42),
		util.PadRight("MSGS", 6),
		"UPDATED")
	for _, s := range sessions {
		marker := " "
		if s.ID == currentID {
			marker = "*"
		}
		fmt.Printf("%s%s %s %s %s\n",
			marker,
			util.PadRight(s.ID, 19),
			util.PadRight(util.Truncate(s.Title, 40), 42),
			util.PadRight(fmt.Sprintf("%d", s.MessageCount()), 6),
			s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func showSession(env *Env, id string) error {
	if id == "" {
		return errors.New("usage: deepchat sessions show <id>")
	}
	out, ok := env.Repo.ExportMarkdown(id)
	if !ok {
		return fmt.Errorf("no session with id %s", id)
	}
	fmt.Println(out)
	return nil
}

func exportSession(env *Env, args *ArgParser) error {
	id := args.Positional(1)
	if id == "" {
		return errors.New("usage: deepchat sessions export <id> [--format md|json] [--out file]")
	}

	var data []byte
	switch format := args.FlagOrDefault("format", "md"); format {
	case "md", "markdown":
		out, ok := env.Repo.ExportMarkdown(id)
		if !ok {
			return fmt.Errorf("no session with id %s", id)
		}
		data = []byte(out)
	case "json":
		out, ok := env.Repo.ExportJSON(id)
		if !ok {
			return fmt.Errorf("no session with id %s", id)
		}
		data = out
	default:
		return fmt.Errorf("unknown export format: %s", format)
	}

	if out := args.Flag("out"); out != "" {
		if err := os.WriteFile(out, data, 0644); err != nil {
			return fmt.Errorf("could not write %s: %w", out, err)
		}
		fmt.Printf("Exported session %s to %s\n", id, out)
		return nil
	}
	fmt.Println(string(data))
	return nil
}

func deleteSession(env *Env, args *ArgParser) error {
	id := args.Positional(1)
	if id == "" {
		return errors.New("usage: deepchat sessions delete <id> --confirm")
	}
	if !args.BoolFlag("confirm") {
		return errors.New("refusing to delete without --confirm")
	}

	if !env.Repo.Delete(id) {
		return fmt.Errorf("no session with id %s", id)
	}
	fmt.Printf("Deleted session %s\n", id)
	return nil
}
