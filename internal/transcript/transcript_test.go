package transcript

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/prosepolisher/internal/model"
)

const sampleChat = `{"user_name":"You","character_name":"Seraphina","create_date":"2024-05-01@12h00m00s","chat_metadata":{"note_prompt":""}}
{"name":"Seraphina","is_user":false,"is_system":false,"send_date":"May 1, 2024 12:00pm","mes":"A shiver ran down her spine."}
{"name":"You","is_user":true,"is_system":false,"send_date":"May 1, 2024 12:01pm","mes":"Are you cold?"}

{"name":"System","is_user":false,"is_system":true,"send_date":1714564920000,"mes":"[Narrator note]"}
{"name":"Seraphina","is_user":false,"is_system":false,"send_date":"2024-05-01T12:03:00Z","mes":"Suddenly, she laughed."}
`

func TestRead(t *testing.T) {
	chat, err := Read(strings.NewReader(sampleChat))
	require.NoError(t, err)

	assert.Equal(t, "Seraphina", chat.Header.CharacterName)
	require.Len(t, chat.Messages, 4)

	var analyzable []model.Message
	for _, m := range chat.Messages {
		if m.Analyzable() {
			analyzable = append(analyzable, m)
		}
	}
	require.Len(t, analyzable, 2)
	assert.Equal(t, 0, analyzable[0].Index)
	assert.Equal(t, 3, analyzable[1].Index)

	require.NotNil(t, chat.Messages[0].SentAt)
	assert.Equal(t, 12, chat.Messages[0].SentAt.Hour())
	require.NotNil(t, chat.Messages[2].SentAt)
	assert.Equal(t, int64(1714564920000), chat.Messages[2].SentAt.UnixMilli())
}

func TestRead_BadLine(t *testing.T) {
	_, err := Read(strings.NewReader("{\"user_name\":\"x\"}\nnot json\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestChatID(t *testing.T) {
	assert.Equal(t, "Seraphina - 2024-05-01@12h00m00s", ChatID("/chats/Seraphina/Seraphina - 2024-05-01@12h00m00s.jsonl"))
}

func TestFollowDeliversAppendedMessages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chat.jsonl")
	lines := strings.Split(strings.TrimSpace(sampleChat), "\n")
	require.NoError(t, os.WriteFile(path, []byte(lines[0]+"\n"+lines[1]+"\n"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan model.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, func(m model.Message) error {
			got <- m
			return nil
		}, WithDebounce(20*time.Millisecond))
	}()

	// Let the watcher register before rewriting the file.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(sampleChat), 0o644))

	var texts []string
	for len(texts) < 3 {
		select {
		case m := <-got:
			texts = append(texts, m.Text)
		case <-ctx.Done():
			t.Fatalf("timed out, got %v", texts)
		}
	}
	assert.Equal(t, []string{"Are you cold?", "[Narrator note]", "Suddenly, she laughed."}, texts)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
