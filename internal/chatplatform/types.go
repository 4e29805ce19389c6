// Package chatplatform is the outbound adapter to the chat platform's
// REST API (posts, ephemeral messages, interactive dialogs). Grounded
// on mattermost.rs: same endpoints, same wire shapes, reqwest's Bearer
// client replaced by go-resty.
package chatplatform

// Post is the payload for POST /api/v4/posts.
type Post struct {
	ChannelID string         `json:"channel_id"`
	Message   string         `json:"message"`
	RootID    string         `json:"root_id,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
}

// Attachment is one entry of a post's props.attachments array: a row
// of buttons (or a select) sharing a single integration context shape.
type Attachment struct {
	Fallback   string   `json:"fallback,omitempty"`
	Color      string   `json:"color,omitempty"`
	Pretext    string   `json:"pretext,omitempty"`
	Text       string   `json:"text,omitempty"`
	Title      string   `json:"title,omitempty"`
	AuthorName string   `json:"author_name,omitempty"`
	AuthorIcon string   `json:"author_icon,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	Actions    []Action `json:"actions"`
}

// Action is one interactive button or select element.
type Action struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Style       string         `json:"style,omitempty"`
	Integration Integration    `json:"integration"`
	Options     []ActionOption `json:"options,omitempty"`
}

// ActionOption is one choice of a select-type Action.
type ActionOption struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// Integration is the callback target and context a button's click
// posts back to the bot.
type Integration struct {
	URL     string         `json:"url"`
	Context map[string]any `json:"context"`
}

// Dialog is the payload for POST /api/v4/actions/dialogs/open.
type Dialog struct {
	TriggerID string           `json:"trigger_id"`
	URL       string           `json:"url"`
	Dialog    DialogDefinition `json:"dialog"`
	State     string           `json:"state,omitempty"`
}

// DialogDefinition describes the form rendered inside a Dialog.
type DialogDefinition struct {
	CallbackID       string          `json:"callback_id"`
	Title            string          `json:"title"`
	IntroductionText string          `json:"introduction_text"`
	SubmitLabel      string          `json:"submit_label"`
	Elements         []DialogElement `json:"elements"`
}

// DialogElement is one form field.
type DialogElement struct {
	DisplayName string         `json:"display_name"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Placeholder string         `json:"placeholder,omitempty"`
	Options     []DialogOption `json:"options,omitempty"`
	DataSource  string         `json:"data_source,omitempty"`
	Optional    bool           `json:"optional,omitempty"`
	Default     string         `json:"default,omitempty"`
	SubType     string         `json:"subtype,omitempty"`
	MinLength   int            `json:"min_length,omitempty"`
	MaxLength   int            `json:"max_length,omitempty"`
}

// DialogOption is one select-element choice.
type DialogOption struct {
	Text  string `json:"text"`
	Value string `json:"value"`
}

// SlashCommand is the inbound application/x-www-form-urlencoded
// payload of POST /commands/group_buy.
type SlashCommand struct {
	Token       string `schema:"token"`
	ChannelID   string `schema:"channel_id"`
	TeamID      string `schema:"team_id"`
	UserID      string `schema:"user_id"`
	UserName    string `schema:"user_name"`
	Command     string `schema:"command"`
	Text        string `schema:"text"`
	TriggerID   string `schema:"trigger_id"`
	ResponseURL string `schema:"response_url"`
}

// DialogSubmission is the inbound JSON payload of
// POST /api/v1/group_buy/dialog/{flow}.
type DialogSubmission struct {
	CallbackID string         `json:"callback_id"`
	Submission map[string]any `json:"submission"`
	ChannelID  string         `json:"channel_id"`
	UserID     string         `json:"user_id"`
	Username   string         `json:"user_name"`
	State      string         `json:"state"`
}

// DialogSubmissionResponse carries field-scoped validation errors
// back into the still-open dialog, or a generic error text.
type DialogSubmissionResponse struct {
	Errors map[string]string `json:"errors,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// ActionRequest is the inbound JSON payload of an interactive button
// click, POST /api/v1/group_buy/action/{name}.
type ActionRequest struct {
	UserID    string         `json:"user_id"`
	Username  string         `json:"user_name"`
	ChannelID string         `json:"channel_id"`
	PostID    string         `json:"post_id"`
	TriggerID string         `json:"trigger_id"`
	Context   map[string]any `json:"context"`
}
