package sticker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
)

func TestHandleCommand_NoResults(t *testing.T) {
	idx := &Index{}
	resp := idx.HandleCommand(context.Background(), chatplatform.SlashCommand{Text: "找不到的東西"}, "https://mm.example.com", "https://bot.example.com")
	assert.Equal(t, "ephemeral", resp.ResponseType)
	assert.Contains(t, resp.Text, "找不到的東西")
}

func TestHandleCommand_PostsPickerToResponseURL(t *testing.T) {
	idx := sampleIndex()

	var capturedURL string
	var captured *chatplatform.SlashCommandResponse
	orig := chatplatform.PostToResponseURL
	chatplatform.PostToResponseURL = func(ctx context.Context, responseURL string, body *chatplatform.SlashCommandResponse) error {
		capturedURL = responseURL
		captured = body
		return nil
	}
	defer func() { chatplatform.PostToResponseURL = orig }()

	cmd := chatplatform.SlashCommand{Text: "開心", UserID: "u1", UserName: "alice", ResponseURL: "https://mm.example.com/hook/abc"}
	resp := idx.HandleCommand(context.Background(), cmd, "https://mm.example.com", "https://bot.example.com/")

	assert.Equal(t, "https://mm.example.com/hook/abc", capturedURL)
	require.NotNil(t, captured)
	require.Len(t, captured.Attachments, 1)
	require.Len(t, captured.Attachments[0].Actions, 2)
	assert.Equal(t, "select", captured.Attachments[0].Actions[0].Type)
	assert.Equal(t, "https://bot.example.com/action", captured.Attachments[0].Actions[0].Integration.URL)
	assert.Equal(t, "cancel", captured.Attachments[0].Actions[1].ID)
	assert.Equal(t, "", resp.ResponseType)
}

func TestHandleCommand_MissingResponseURL(t *testing.T) {
	idx := sampleIndex()
	resp := idx.HandleCommand(context.Background(), chatplatform.SlashCommand{Text: "開心"}, "https://mm.example.com", "https://bot.example.com")
	assert.Equal(t, "ephemeral", resp.ResponseType)
}

func TestResolveSelection(t *testing.T) {
	idx := sampleIndex()
	results := idx.Search("開心", nil, maxPickerOptions)
	require.NotEmpty(t, results)

	s, ok := idx.ResolveSelection("開心", "0")
	require.True(t, ok)
	assert.Equal(t, results[0].Name, s.Name)

	_, ok = idx.ResolveSelection("開心", "999")
	assert.False(t, ok)

	_, ok = idx.ResolveSelection("開心", "not-a-number")
	assert.False(t, ok)
}
