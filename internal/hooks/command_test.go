package hooks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/soyeahso/workbench/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandHandler_ReceivesPayload(t *testing.T) {
	out := filepath.Join(t.TempDir(), "payload.json")
	h := CommandHandler("cat > "+out, time.Second)

	err := h(context.Background(), Payload{Event: EventPresetSaved, Data: map[string]any{"id": "p1"}})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var got Payload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, EventPresetSaved, got.Event)
	assert.Equal(t, "p1", got.Data["id"])
}

func TestCommandHandler_EventEnv(t *testing.T) {
	out := filepath.Join(t.TempDir(), "event.txt")
	h := CommandHandler(`printf %s "$WORKBENCH_HOOK_EVENT" > `+out, time.Second)

	require.NoError(t, h(context.Background(), Payload{Event: EventSessionEnd}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, EventSessionEnd, string(data))
}

func TestCommandHandler_Failure(t *testing.T) {
	h := CommandHandler("echo broken >&2; exit 3", time.Second)
	err := h(context.Background(), Payload{Event: EventGatewayStart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestCommandHandler_Timeout(t *testing.T) {
	h := CommandHandler("sleep 5", 50*time.Millisecond)
	start := time.Now()
	err := h(context.Background(), Payload{Event: EventGatewayStop})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRegisterCommands(t *testing.T) {
	m := testManager()
	n := m.RegisterCommands(map[string][]config.HookEntry{
		EventFileUploaded: {{Command: "true"}, {Command: "  "}},
		EventGatewayStart: {{Command: "true", Timeout: 500}},
		"after_agent_run": {{Command: "true"}},
	})

	assert.Equal(t, 2, n)
	assert.Equal(t, 0, m.Count("after_agent_run"))
	assert.Equal(t, 1, m.Count(EventFileUploaded))
	assert.Equal(t, 1, m.Count(EventGatewayStart))
}

func TestRegisterCommands_RunAsync(t *testing.T) {
	m := testManager()
	out := filepath.Join(t.TempDir(), "seen")
	m.RegisterCommands(map[string][]config.HookEntry{
		EventFolderDeleted: {{Command: "cat > " + out}},
	})

	require.NoError(t, m.Emit(context.Background(), EventFolderDeleted, map[string]any{"folder_path": "old"}))
	m.Wait()

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"folder_path":"old"`)
}

func TestUnregisterCommands(t *testing.T) {
	m := testManager()
	byEvent := map[string][]config.HookEntry{
		EventPresetSaved: {{Command: "true"}, {Command: "true"}},
	}
	m.On(EventPresetSaved, "other", func(context.Context, Payload) error { return nil })
	m.RegisterCommands(byEvent)
	require.Equal(t, 3, m.Count(EventPresetSaved))

	m.UnregisterCommands(byEvent)
	assert.Equal(t, 1, m.Count(EventPresetSaved))
}
