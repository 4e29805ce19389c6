package sticker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
)

const maxPickerOptions = 25

// HandleCommand answers a /sticker slash command: searches the index
// and posts an interactive select-or-cancel attachment to
// responseURL. Mirrors handle_sticker_command_impl, minus the
// response_type envelope warp::reply wraps around the same payload.
func (idx *Index) HandleCommand(ctx context.Context, cmd chatplatform.SlashCommand, mattermostURL, callbackBaseURL string) *chatplatform.SlashCommandResponse {
	text := strings.TrimSpace(cmd.Text)

	results := idx.Search(text, nil, maxPickerOptions)
	if len(results) == 0 {
		message := "沒有可用的貼圖"
		if text != "" {
			message = fmt.Sprintf("找不到符合「%s」的貼圖", text)
		}
		return &chatplatform.SlashCommandResponse{ResponseType: "ephemeral", Text: message}
	}

	options := make([]chatplatform.ActionOption, len(results))
	for i, s := range results {
		options[i] = chatplatform.ActionOption{Text: s.DisplayName(), Value: strconv.Itoa(i)}
	}

	callbackURL := strings.TrimRight(callbackBaseURL, "/") + "/action"

	descriptionText := fmt.Sprintf("共 %d 張貼圖，請從下拉選單選擇：", len(results))
	if text != "" {
		descriptionText = fmt.Sprintf("搜尋「%s」找到 %d 張貼圖，請選擇：", text, len(results))
	}

	attachment := chatplatform.Attachment{
		Fallback: "選擇貼圖",
		Color:    "#3AA3E3",
		Text:     descriptionText,
		Title:    "🎨 貼圖選擇器",
		Actions: []chatplatform.Action{
			{
				ID:   "stickerselect",
				Name: "選擇貼圖",
				Type: "select",
				Integration: chatplatform.Integration{
					URL: callbackURL,
					Context: map[string]any{
						"action":    "select_sticker",
						"user_id":   cmd.UserID,
						"user_name": cmd.UserName,
						"keyword":   text,
					},
				},
				Options: options,
			},
			{
				ID:    "cancel",
				Name:  "❌ 取消",
				Type:  "button",
				Style: "danger",
				Integration: chatplatform.Integration{
					URL:     callbackURL,
					Context: map[string]any{"action": "cancel", "user_id": cmd.UserID},
				},
			},
		},
	}

	payload := &chatplatform.SlashCommandResponse{
		ResponseType: "in_channel",
		Username:     cmd.UserName,
		IconURL:      fmt.Sprintf("%s/api/v4/users/%s/image", mattermostURL, cmd.UserID),
		Attachments:  []chatplatform.Attachment{attachment},
	}

	if cmd.ResponseURL == "" {
		log.Error().Msg("response_url 為空")
		return &chatplatform.SlashCommandResponse{ResponseType: "ephemeral", Text: "無法發送貼圖選擇器"}
	}

	if err := chatplatform.PostToResponseURL(ctx, cmd.ResponseURL, payload); err != nil {
		log.Error().Err(err).Msg("透過 response_url 發送失敗")
		return &chatplatform.SlashCommandResponse{ResponseType: "ephemeral", Text: "發送貼圖選擇器失敗，請稍後再試"}
	}

	return &chatplatform.SlashCommandResponse{ResponseType: ""}
}

func ctxString(ctx map[string]any, key, fallback string) string {
	if v, ok := ctx[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// HandleAction answers one interactive-message click against the
// picker: "select_sticker" re-searches and shows a preview with
// send/cancel buttons, "send_sticker" replaces the message with the
// sticker image, "cancel" clears it. Mirrors handle_action's own
// action_type switch in handlers/actions.rs, including its
// "only the user who triggered the picker may act on it" guard and
// its bare map response shapes (no JSON struct was introduced here
// either, since every branch shapes the map differently).
func (idx *Index) HandleAction(ctx context.Context, req chatplatform.ActionRequest, mattermostURL, callbackBaseURL string) map[string]any {
	originalUserID := ctxString(req.Context, "user_id", "")
	if originalUserID != "" && originalUserID != req.UserID {
		return map[string]any{"ephemeral_text": "⚠️ 只有發起指令的使用者才能操作此面板"}
	}

	switch action, _ := req.Context["action"].(string); action {
	case "cancel":
		return map[string]any{"update": map[string]any{"message": "", "props": map[string]any{}}}
	case "select_sticker":
		return idx.handleSelectSticker(req, mattermostURL, callbackBaseURL)
	case "send_sticker":
		return handleSendSticker(req, mattermostURL)
	default:
		return map[string]any{"ephemeral_text": "未知的操作"}
	}
}

func (idx *Index) handleSelectSticker(req chatplatform.ActionRequest, mattermostURL, callbackBaseURL string) map[string]any {
	selected := ctxString(req.Context, "selected_option", "")
	if selected == "" {
		return map[string]any{"ephemeral_text": "請選擇一個貼圖"}
	}

	userID := ctxString(req.Context, "user_id", req.UserID)
	userName := ctxString(req.Context, "user_name", req.Username)
	keyword := ctxString(req.Context, "keyword", "")

	sticker, ok := idx.ResolveSelection(keyword, selected)
	if !ok {
		return map[string]any{"ephemeral_text": "找不到指定的貼圖"}
	}

	callbackURL := strings.TrimRight(callbackBaseURL, "/") + "/action"
	results := idx.Search(keyword, nil, maxPickerOptions)
	options := make([]chatplatform.ActionOption, len(results))
	for i, s := range results {
		options[i] = chatplatform.ActionOption{Text: s.DisplayName(), Value: strconv.Itoa(i)}
	}

	attachment := chatplatform.Attachment{
		Fallback:   fmt.Sprintf("已選擇: %s", sticker.Name),
		Color:      "#36a64f",
		Text:       fmt.Sprintf("已選擇: **%s**", sticker.DisplayName()),
		AuthorName: userName,
		AuthorIcon: fmt.Sprintf("%s/api/v4/users/%s/image", mattermostURL, userID),
		Title:      "🎨 貼圖預覽",
		ImageURL:   sticker.ImageURL,
		Actions: []chatplatform.Action{
			{
				ID: "stickerselect", Name: "選擇貼圖", Type: "select",
				Integration: chatplatform.Integration{
					URL:     callbackURL,
					Context: map[string]any{"action": "select_sticker", "user_id": userID, "user_name": userName, "keyword": keyword},
				},
				Options: options,
			},
			{
				ID: "send", Name: "✅ 發送", Type: "button", Style: "primary",
				Integration: chatplatform.Integration{
					URL:     callbackURL,
					Context: map[string]any{"action": "send_sticker", "sticker_name": sticker.Name, "sticker_image_url": sticker.ImageURL, "user_id": userID, "user_name": userName},
				},
			},
			{
				ID: "cancel", Name: "❌ 取消", Type: "button", Style: "danger",
				Integration: chatplatform.Integration{URL: callbackURL, Context: map[string]any{"action": "cancel", "user_id": userID}},
			},
		},
	}

	return map[string]any{
		"update": map[string]any{
			"message": "",
			"props":   map[string]any{"attachments": []chatplatform.Attachment{attachment}},
		},
	}
}

func handleSendSticker(req chatplatform.ActionRequest, mattermostURL string) map[string]any {
	name := ctxString(req.Context, "sticker_name", "sticker")
	imageURL := ctxString(req.Context, "sticker_image_url", "")
	if imageURL == "" {
		return map[string]any{"ephemeral_text": "找不到指定的貼圖"}
	}
	userName := ctxString(req.Context, "user_name", req.Username)
	userID := ctxString(req.Context, "user_id", req.UserID)

	return map[string]any{
		"update": map[string]any{
			"message": fmt.Sprintf("![%s](%s)", name, imageURL),
			"props": map[string]any{
				"override_username": userName,
				"override_icon_url": fmt.Sprintf("%s/api/v4/users/%s/image", mattermostURL, userID),
			},
		},
	}
}

// ResolveSelection maps a select action's chosen index back to the
// originally searched Sticker, re-running the same search so the
// index held in the button's context need not carry the full result
// set.
func (idx *Index) ResolveSelection(keyword, indexValue string) (Sticker, bool) {
	i, err := strconv.Atoi(indexValue)
	if err != nil || i < 0 {
		return Sticker{}, false
	}
	results := idx.Search(keyword, nil, maxPickerOptions)
	if i >= len(results) {
		return Sticker{}, false
	}
	return results[i], true
}
