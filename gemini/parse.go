package gemini

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"line-comicbot/pkg/gallery"
)

type responseInline struct {
	MimeType      string `json:"mimeType"`
	MimeTypeSnake string `json:"mime_type"`
	Data          string `json:"data"`
}

type responsePart struct {
	InlineData      *responseInline `json:"inlineData"`
	InlineDataSnake *responseInline `json:"inline_data"`
	Text            string          `json:"text"`
}

type generateResponse struct {
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Candidates []struct {
		Content struct {
			Parts []responsePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

// errNoCandidates marks a well-formed response that carries nothing to read,
// either because the prompt was blocked or no candidate was produced.
var errNoCandidates = errors.New("response has no candidates")

func decodeResponse(body []byte) (*generateResponse, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: prompt blocked: %s", errNoCandidates, resp.PromptFeedback.BlockReason)
		}
		return nil, errNoCandidates
	}
	return &resp, nil
}

// ExtractImage returns the first inline image in a generateContent response.
// Both the camelCase and snake_case spellings of the field are accepted.
func ExtractImage(body []byte) (gallery.MediaBlob, error) {
	resp, err := decodeResponse(body)
	if errors.Is(err, errNoCandidates) {
		return gallery.MediaBlob{}, fmt.Errorf("%w: %w", ErrNoImage, err)
	}
	if err != nil {
		return gallery.MediaBlob{}, fmt.Errorf("%w: %w", ErrTransformFailed, err)
	}

	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			inline := part.InlineData
			if inline == nil || inline.Data == "" {
				inline = part.InlineDataSnake
			}
			if inline == nil || inline.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(inline.Data)
			if err != nil {
				return gallery.MediaBlob{}, fmt.Errorf("%w: decode image data: %w", ErrTransformFailed, err)
			}
			mt := inline.MimeType
			if mt == "" {
				mt = inline.MimeTypeSnake
			}
			return gallery.MediaBlob{Data: data, MimeType: mt}, nil
		}
	}
	return gallery.MediaBlob{}, ErrNoImage
}

// ExtractText concatenates the text parts of the first candidate.
func ExtractText(body []byte) (string, error) {
	resp, err := decodeResponse(body)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return "", errors.New("response has no text")
	}
	return sb.String(), nil
}

// ParseAnalysis reads the model's answer to AnalysisPrompt. The second return
// value is false when the strict JSON parse failed and the keyword fallback
// was used instead.
func ParseAnalysis(text string) (gallery.Analysis, bool) {
	if a, err := parseAnalysisJSON(text); err == nil {
		return a, true
	}
	return parseAnalysisKeywords(text), false
}

func parseAnalysisJSON(text string) (gallery.Analysis, error) {
	s := stripFences(strings.TrimSpace(text))
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		s = s[i : j+1]
	}
	if strings.HasPrefix(s, "{'") || strings.Contains(s, "':") {
		s = strings.ReplaceAll(s, "'", `"`)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return gallery.Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	face, ok := raw["face_detected"]
	if !ok {
		return gallery.Analysis{}, errors.New("missing face_detected")
	}
	pose, ok := raw["is_pose"]
	if !ok {
		return gallery.Analysis{}, errors.New("missing is_pose")
	}
	return gallery.Analysis{SubjectPresent: truthy(face), Posed: truthy(pose)}, nil
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	var kept []string
	inBlock := false
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inBlock = !inBlock
			continue
		}
		if inBlock {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "yes", "y", "true", "はい":
			return true
		}
	}
	return false
}

// parseAnalysisKeywords looks for an affirmative word shortly after each key.
func parseAnalysisKeywords(text string) gallery.Analysis {
	lower := strings.ToLower(text)
	return gallery.Analysis{
		SubjectPresent: affirmativeAfter(lower, "face_detected"),
		Posed:          affirmativeAfter(lower, "is_pose"),
	}
}

func affirmativeAfter(text, key string) bool {
	i := strings.Index(text, key)
	if i < 0 {
		return false
	}
	rest := text[i+len(key):]
	if end := strings.IndexAny(rest, ",}\n"); end >= 0 {
		rest = rest[:end]
	}
	return strings.Contains(rest, "yes") || strings.Contains(rest, "true") || strings.Contains(rest, "はい")
}
