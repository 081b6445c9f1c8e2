package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintParticipantToken_ProducesJWT(t *testing.T) {
	m := NewManager(Config{
		Host:      "wss://example.livekit.cloud",
		APIKey:    "APIabc123",
		APISecret: "secretabc123secretabc123",
		AgentName: "anketa-voice-agent",
	})

	token, err := m.MintParticipantToken("caller-1", "consultation-abcd1234")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	// a JWT has three dot-separated segments
	assert.Equal(t, 3, len(splitJWT(token)))
}

func splitJWT(token string) []string {
	var parts []string
	start := 0
	for i, c := range token {
		if c == '.' {
			parts = append(parts, token[start:i])
			start = i + 1
		}
	}
	parts = append(parts, token[start:])
	return parts
}

func TestConfig_EmptyRoomTTLConstant(t *testing.T) {
	assert.Equal(t, float64(300), EmptyRoomTTL.Seconds())
}
