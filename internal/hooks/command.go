package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/workbench/internal/config"
)

// DefaultCommandTimeout bounds a shell hook with no configured timeout.
const DefaultCommandTimeout = 10 * time.Second

// CommandHandler runs command through sh with the JSON-encoded payload on
// stdin. The hook event name is exported as WORKBENCH_HOOK_EVENT.
func CommandHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(cmd.Environ(), "WORKBENCH_HOOK_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook command %q: %w: %s", command, err, msg)
			}
			return fmt.Errorf("hook command %q: %w", command, err)
		}
		return nil
	}
}

// RegisterCommands registers an async CommandHandler for every configured
// entry and returns how many it added. Entries for unknown events are
// skipped. Handlers are named "command:<event>:<index>".
func (m *Manager) RegisterCommands(byEvent map[string][]config.HookEntry) int {
	n := 0
	for event, entries := range byEvent {
		if !Known(event) {
			m.log.Warn().Str("event", event).Msg("ignoring hooks for unknown event")
			continue
		}
		for i, e := range entries {
			if strings.TrimSpace(e.Command) == "" {
				continue
			}
			timeout := time.Duration(e.Timeout) * time.Millisecond
			m.OnAsync(event, fmt.Sprintf("command:%s:%d", event, i), CommandHandler(e.Command, timeout))
			n++
		}
	}
	return n
}

// UnregisterCommands removes the handlers RegisterCommands added for byEvent.
func (m *Manager) UnregisterCommands(byEvent map[string][]config.HookEntry) {
	for event, entries := range byEvent {
		for i := range entries {
			m.Off(event, fmt.Sprintf("command:%s:%d", event, i))
		}
	}
}
