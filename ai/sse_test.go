package ai

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanSSECollectsDataLines(t *testing.T) {
	body := strings.Join([]string{
		"data: {\"a\":1}",
		"",
		": comment line",
		"data: {\"a\":2}",
		"",
		"data: [DONE]",
		"data: {\"a\":3}",
	}, "\n")

	var got []string
	err := scanSSE(strings.NewReader(body), func(_, data string) bool {
		if data == sseDone {
			return false
		}
		got = append(got, data)
		return true
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"{\"a\":1}", "{\"a\":2}"}, got, "scan must stop at [DONE]")
}

func TestScanSSETracksEventNames(t *testing.T) {
	body := strings.Join([]string{
		"event: content-delta",
		"data: {\"text\":\"hi\"}",
		"",
		"event: message-end",
		"data: {}",
	}, "\n")

	events := map[string]string{}
	err := scanSSE(strings.NewReader(body), func(event, data string) bool {
		events[event] = data
		return true
	})

	require.NoError(t, err)
	assert.Equal(t, "{\"text\":\"hi\"}", events["content-delta"])
	assert.Equal(t, "{}", events["message-end"])
}

func TestBuildGoogleRequestSystemInstruction(t *testing.T) {
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: "you are the narrator"},
		{Role: RoleUser, Content: "attack"},
		{Role: RoleAssistant, Content: "the blade sings"},
	}

	req := buildGoogleRequest("gemini-2.0-flash", msgs)

	require.NotNil(t, req.SystemInstruction)
	assert.Equal(t, "you are the narrator", req.SystemInstruction.Parts[0].Text)
	require.Len(t, req.Contents, 2)
	assert.Equal(t, "user", req.Contents[0].Role)
	assert.Equal(t, "model", req.Contents[1].Role)
}

func TestBuildGoogleRequestGemmaFoldsSystemIntoUser(t *testing.T) {
	msgs := []ChatMessage{
		{Role: RoleSystem, Content: "you are the narrator"},
		{Role: RoleUser, Content: "attack"},
	}

	req := buildGoogleRequest("gemma-3-27b-it", msgs)

	assert.Nil(t, req.SystemInstruction)
	require.Len(t, req.Contents, 1)
	assert.Equal(t, "you are the narrator\nattack", req.Contents[0].Parts[0].Text)
}
