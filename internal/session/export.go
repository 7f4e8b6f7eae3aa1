// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"strings"
	"time"
)

// ExportMarkdown renders the session with the given id as Markdown with
// role labels and timestamps. Returns false if the id is unknown.
func (r *Repository) ExportMarkdown(id string) (string, bool) {
	sess := r.Get(id)
	if sess == nil {
		return "", false
	}

	var sb strings.Builder
	sb.WriteString("# " + sess.Title + "\n\n")
	sb.WriteString("Created: " + sess.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, msg := range sess.Messages {
		sb.WriteString("**" + msg.Role.DisplayName() + "** (" + msg.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n---\n\n")
	}

	return sb.String(), true
}

// ExportJSON renders the session with the given id as pretty-printed JSON.
// Returns false if the id is unknown.
func (r *Repository) ExportJSON(id string) ([]byte, bool) {
	sess := r.Get(id)
	if sess == nil {
		return nil, false
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return nil, false
	}
	return data, true
}
