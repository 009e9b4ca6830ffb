package linebot

// Message is an outbound message object. Every Message satisfies the SDK's
// messaging_api.MessageInterface and is serialised as-is.
type Message interface {
	GetType() string
}

// TextMessage is a plain text message.
type TextMessage struct {
	QuickReply *QuickReply `json:"quickReply,omitempty"`
	Type       string      `json:"type"`
	Text       string      `json:"text"`
}

// StickerMessage shows a sticker.
type StickerMessage struct {
	Type      string `json:"type"`
	PackageID string `json:"packageId"`
	StickerID string `json:"stickerId"`
}

// ImageMessage shows an image by URL.
type ImageMessage struct {
	Type               string `json:"type"`
	OriginalContentURL string `json:"originalContentUrl"`
	PreviewImageURL    string `json:"previewImageUrl"`
}

// FlexMessage carries a flex bubble.
type FlexMessage struct {
	QuickReply *QuickReply `json:"quickReply,omitempty"`
	Contents   *FlexBubble `json:"contents"`
	Type       string      `json:"type"`
	AltText    string      `json:"altText"`
}

// GetType returns the message type.
func (m TextMessage) GetType() string { return m.Type }

// GetType returns the message type.
func (m StickerMessage) GetType() string { return m.Type }

// GetType returns the message type.
func (m ImageMessage) GetType() string { return m.Type }

// GetType returns the message type.
func (m FlexMessage) GetType() string { return m.Type }

// Text builds a text message.
func Text(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

// Sticker builds a sticker message.
func Sticker(packageID, stickerID string) StickerMessage {
	return StickerMessage{Type: "sticker", PackageID: packageID, StickerID: stickerID}
}

// Image builds an image message that uses the same URL for the preview.
func Image(url string) ImageMessage {
	return ImageMessage{Type: "image", OriginalContentURL: url, PreviewImageURL: url}
}

// Flex builds a flex message.
func Flex(altText string, bubble *FlexBubble) FlexMessage {
	return FlexMessage{Type: "flex", AltText: altText, Contents: bubble}
}

// QuickReply is a row of buttons shown above the keyboard.
type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

// QuickReplyItem is one quick reply button.
type QuickReplyItem struct {
	Action Action `json:"action"`
	Type   string `json:"type"`
}

// Action is a tap action. Only the fields for Type are set.
type Action struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	URI   string `json:"uri,omitempty"`
}

// URIAction opens uri.
func URIAction(label, uri string) *Action {
	return &Action{Type: "uri", Label: label, URI: uri}
}

// FlexBubble is a single flex card.
type FlexBubble struct {
	Hero   *FlexComponent `json:"hero,omitempty"`
	Body   *FlexComponent `json:"body,omitempty"`
	Footer *FlexComponent `json:"footer,omitempty"`
	Styles *BubbleStyles  `json:"styles,omitempty"`
	Type   string         `json:"type"`
}

// BubbleStyles sets per-block backgrounds.
type BubbleStyles struct {
	Body   *BlockStyle `json:"body,omitempty"`
	Footer *BlockStyle `json:"footer,omitempty"`
}

// BlockStyle styles one bubble block.
type BlockStyle struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

// FlexComponent covers the box, text, image, button and separator components.
type FlexComponent struct {
	Action          *Action          `json:"action,omitempty"`
	Type            string           `json:"type"`
	Layout          string           `json:"layout,omitempty"`
	Text            string           `json:"text,omitempty"`
	URL             string           `json:"url,omitempty"`
	Size            string           `json:"size,omitempty"`
	AspectRatio     string           `json:"aspectRatio,omitempty"`
	AspectMode      string           `json:"aspectMode,omitempty"`
	Weight          string           `json:"weight,omitempty"`
	Color           string           `json:"color,omitempty"`
	Margin          string           `json:"margin,omitempty"`
	Spacing         string           `json:"spacing,omitempty"`
	Style           string           `json:"style,omitempty"`
	BackgroundColor string           `json:"backgroundColor,omitempty"`
	Contents        []*FlexComponent `json:"contents,omitempty"`
	Wrap            bool             `json:"wrap,omitempty"`
}
