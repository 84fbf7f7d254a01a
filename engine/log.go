package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// writeInteractionLog dumps the full run in a form meant for people:
// scenario settings, then each turn's public and secret fields, then
// the outcome summary.
func (e *Engine) writeInteractionLog() error {
	var b strings.Builder

	fmt.Fprintf(&b, "Game: %s\n", e.game.Name())
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, entry := range e.state.Entries {
		switch entry.Kind {
		case EntryStart:
			b.WriteString("Settings\n")
			writeSortedFields(&b, entry.Settings)
			b.WriteString("\n")
		case EntryTurn:
			fmt.Fprintf(&b, "Iteration %d (%s)\n", entry.Iteration, entry.Player)
			b.WriteString(strings.Repeat("-", 60) + "\n")
			if entry.Observation != "" {
				b.WriteString("Observed:\n")
				for _, line := range strings.Split(entry.Observation, "\n") {
					b.WriteString("    " + line + "\n")
				}
			}
			b.WriteString("Public:\n")
			writeSortedFields(&b, entry.Public)
			b.WriteString("Secret:\n")
			writeSortedFields(&b, entry.Secret)
			b.WriteString("\n")
		case EntryEnd:
			b.WriteString("Outcome\n")
			b.WriteString(strings.Repeat("=", 60) + "\n")
			writeSortedFields(&b, entry.Summary)
		}
	}

	if err := os.MkdirAll(e.cfg.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(e.cfg.LogDir, "interaction.log")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write interaction log: %w", err)
	}
	e.logger.Info("interaction log written", zap.String("path", path))
	return nil
}

func writeSortedFields(b *strings.Builder, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "    %s: %s\n", k, fields[k])
	}
}
