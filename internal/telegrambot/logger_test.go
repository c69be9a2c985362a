package telegrambot

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBotLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewBotLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	l.Println("Failed to get updates, retrying in 3 seconds...")
	l.Printf("Endpoint: %s, params: %v\n", "getMe", map[string]string{})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]string
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.Equal(t, "warn", first["level"])
	assert.Equal(t, "tgbotapi", first["component"])
	assert.Equal(t, "Failed to get updates, retrying in 3 seconds...", first["message"])
	assert.Equal(t, "debug", second["level"])
	assert.Equal(t, "Endpoint: getMe, params: map[]", second["message"])
}
