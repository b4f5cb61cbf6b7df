// Package transcript reads SillyTavern chat files (JSON Lines: one header
// object, then one object per message).
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rcliao/prosepolisher/internal/model"
)

// Header is the first line of a chat file.
type Header struct {
	UserName      string         `json:"user_name"`
	CharacterName string         `json:"character_name"`
	CreateDate    string         `json:"create_date"`
	ChatMetadata  map[string]any `json:"chat_metadata,omitempty"`
}

// Chat is a parsed chat file.
type Chat struct {
	Header   Header
	Messages []model.Message
}

type rawMessage struct {
	Name     string          `json:"name"`
	IsUser   bool            `json:"is_user"`
	IsSystem bool            `json:"is_system"`
	Mes      *string         `json:"mes"`
	SendDate json.RawMessage `json:"send_date"`
}

// ChatID derives a stable chat id from a chat file path.
func ChatID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// Read parses a whole chat. Blank lines are skipped; a line that is not
// valid JSON is an error naming its line number.
func Read(r io.Reader) (*Chat, error) {
	chat := &Chat{}
	br := bufio.NewReader(r)
	lineNo := 0
	first := true
	for {
		line, err := br.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			lineNo++
			msg, header, perr := parseLine(line, len(chat.Messages))
			if perr != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, perr)
			}
			switch {
			case header != nil && first:
				chat.Header = *header
			case msg != nil:
				chat.Messages = append(chat.Messages, *msg)
			}
			first = false
		}
		if errors.Is(err, io.EOF) {
			return chat, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read chat: %w", err)
		}
	}
}

// ReadFile parses the chat file at path.
func ReadFile(path string) (*Chat, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chat: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// parseLine returns a message for message lines and a header for lines
// without a "mes" field.
func parseLine(line []byte, index int) (*model.Message, *Header, error) {
	var raw rawMessage
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, nil, fmt.Errorf("decode: %w", err)
	}
	if raw.Mes == nil {
		var h Header
		if err := json.Unmarshal(line, &h); err != nil {
			return nil, nil, fmt.Errorf("decode header: %w", err)
		}
		return nil, &h, nil
	}
	return &model.Message{
		Index:    index,
		Name:     raw.Name,
		IsUser:   raw.IsUser,
		IsSystem: raw.IsSystem,
		Text:     *raw.Mes,
		SentAt:   parseSendDate(raw.SendDate),
	}, nil, nil
}

var sendDateLayouts = []string{
	time.RFC3339Nano,
	"January 2, 2006 3:04pm",
	"January 2, 2006 3:04 PM",
	"2006-01-02 @15h 04m 05s 000ms",
	"2006-01-02 @15h 04m 05s",
	"2006-01-02T15:04:05",
}

// parseSendDate accepts the formats SillyTavern has written over time:
// humanized strings, ISO timestamps and epoch milliseconds.
func parseSendDate(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.UnixMilli(ms).UTC()
		return &t
	}
	for _, layout := range sendDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
