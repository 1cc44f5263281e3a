package domain

import "encoding/json"

// MessageType identifies the kind of message exchanged over the channel.
// The set is closed: anything else is a protocol error and is dropped.
type MessageType string

const (
	// Outbound.
	MessageQuery        MessageType = "query"
	MessageToolResult   MessageType = "tool_result"
	MessageToolDeclined MessageType = "tool_declined"

	// Inbound.
	MessageText        MessageType = "text"
	MessageToolRequest MessageType = "tool_request"
	MessageComplete    MessageType = "complete"
	MessageError       MessageType = "error"
	MessageStatus      MessageType = "status"
)

// ChannelMessage is the envelope exchanged with the remote agent backend.
// Fields are populated per Type; unused fields stay empty on the wire.
type ChannelMessage struct {
	Type      MessageType     `json:"type"`
	Content   string          `json:"content,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Tool      ToolName        `json:"tool,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    any             `json:"result,omitempty"` // string or []ResultBlock
	Status    string          `json:"status,omitempty"`
}

// QueryMessage builds an outbound query message.
func QueryMessage(text string) ChannelMessage {
	return ChannelMessage{Type: MessageQuery, Content: text}
}

// ToolResultMessage builds an outbound tool_result referencing toolUseID.
func ToolResultMessage(toolUseID string, result any) ChannelMessage {
	return ChannelMessage{Type: MessageToolResult, ToolUseID: toolUseID, Result: result}
}

// ToolDeclinedMessage builds an outbound tool_declined referencing toolUseID.
func ToolDeclinedMessage(toolUseID string) ChannelMessage {
	return ChannelMessage{Type: MessageToolDeclined, ToolUseID: toolUseID}
}

// ToolRequest is the payload of a tool_request message.
type ToolRequest struct {
	ToolUseID string
	Tool      ToolName
	Params    json.RawMessage
}

// ToolRequestFromMessage extracts the tool request carried by msg.
func ToolRequestFromMessage(msg ChannelMessage) ToolRequest {
	return ToolRequest{ToolUseID: msg.ToolUseID, Tool: msg.Tool, Params: msg.Params}
}

// ResultBlock is one element of a structured tool result.
type ResultBlock struct {
	Type   string       `json:"type"` // "text" or "image"
	Text   string       `json:"text,omitempty"`
	Source *ImageSource `json:"source,omitempty"`
}

// ImageSource carries base64 image data in a structured tool result.
type ImageSource struct {
	Type      string `json:"type"` // always "base64"
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// TextBlock builds a text result block.
func TextBlock(text string) ResultBlock {
	return ResultBlock{Type: "text", Text: text}
}

// ImageBlock builds a base64 image result block.
func ImageBlock(mediaType, data string) ResultBlock {
	return ResultBlock{
		Type:   "image",
		Source: &ImageSource{Type: "base64", MediaType: mediaType, Data: data},
	}
}
