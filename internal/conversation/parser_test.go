package conversation

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTranscript = `{"type":"summary","summary":"ignored"}
{"type":"user","uuid":"u1","sessionId":"sess-1","cwd":"/work/app","timestamp":"2026-01-02T10:00:00Z","message":{"role":"user","content":"Please stage my changes"}}
{"type":"assistant","uuid":"a1","parentUuid":"u1","sessionId":"sess-1","timestamp":"2026-01-02T10:00:05.123Z","message":{"role":"assistant","content":[{"type":"text","text":"Staging everything."},{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"git add ."}}]}}
{"type":"user","uuid":"r1","parentUuid":"a1","sessionId":"sess-1","timestamp":"2026-01-02T10:00:06Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"t1","content":"ok"}]}}
{"type":"assistant","uuid":"a2","parentUuid":"r1","sessionId":"sess-1","timestamp":"2026-01-02T10:00:07Z","message":{"role":"assistant","content":[{"type":"tool_use","id":"t2","name":"Edit","input":{"file_path":"/work/app/main.py"}}]}}
not json
{"type":"user","uuid":"u2","parentUuid":"a2","sessionId":"sess-1","timestamp":"2026-01-02T10:01:00Z","message":{"role":"user","content":"Don't use git add . — specify files explicitly"}}
`

func writeTranscript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParser_ParseFile(t *testing.T) {
	path := writeTranscript(t, t.TempDir(), "file-name.jsonl", sampleTranscript)

	result, err := NewParser().ParseFile(path)
	require.NoError(t, err)

	conv := result.Conversation
	assert.Equal(t, "sess-1", conv.ID)
	assert.Equal(t, "/work/app", conv.WorkspacePath)
	assert.Equal(t, 1, result.ErrorCount)
	require.Len(t, conv.Utterances, 4)

	assert.Equal(t, RoleHuman, conv.Utterances[0].Role)
	assert.Equal(t, "Please stage my changes", conv.Utterances[0].Text)

	assert.Equal(t, RoleAssistant, conv.Utterances[1].Role)
	assert.Equal(t, "Staging everything.\n$ git add .", conv.Utterances[1].Text)
	assert.Equal(t, "u1", conv.Utterances[1].ReplyTo)

	assert.Equal(t, []string{"/work/app/main.py"}, conv.Utterances[2].FilePaths)
	assert.Equal(t, "a2", conv.Utterances[3].ReplyTo)
	for _, u := range conv.Utterances {
		assert.Equal(t, "sess-1", u.ConversationID)
	}
}

func TestParser_ParseFile_Missing(t *testing.T) {
	_, err := NewParser().ParseFile(filepath.Join(t.TempDir(), "nope.jsonl"))
	require.Error(t, err)
}

func TestParser_ParseDir(t *testing.T) {
	dir := t.TempDir()
	writeTranscript(t, dir, "b.jsonl", sampleTranscript)
	writeTranscript(t, dir, "proj/a.jsonl", `{"type":"user","uuid":"x","sessionId":"sess-2","message":{"role":"user","content":"hello"}}`)
	writeTranscript(t, dir, "empty.jsonl", "")

	convs, errs, err := NewParser().ParseDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, convs, 2)
	assert.Equal(t, "sess-1", convs[0].ID)
	assert.Equal(t, "sess-2", convs[1].ID)
	assert.Len(t, errs, 1)
}

func TestConversation_Index(t *testing.T) {
	c := Conversation{Utterances: []Utterance{{ID: "a"}, {ID: "b"}}}
	assert.Equal(t, 1, c.Index("b"))
	assert.Equal(t, -1, c.Index("z"))
	assert.Equal(t, -1, c.Index(""))
}
