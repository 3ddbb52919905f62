package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const typeTag = "__type__"

func (t Translatable) MarshalJSON() ([]byte, error) {
	translations := map[string]string(t)
	if translations == nil {
		translations = map[string]string{}
	}
	return json.Marshal(map[string]any{"translations": translations})
}

func (c RenderCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{typeTag: "CommandUIRender", "page": c.Page})
}

func (c ExitCommand) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{typeTag: "CommandSystemExit", "code": c.Code, "info": c.Info})
}

func (p DonationPage) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		typeTag:    "PropsUIPageDonation",
		"platform": p.Platform,
		"header":   map[string]any{typeTag: "PropsUIHeader", "title": p.Header},
		"body":     p.Body,
		"footer":   map[string]any{typeTag: "PropsUIFooter"},
	})
}

func (EndPage) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{typeTag: "PropsUIPageEnd"})
}

func (p FileInputPrompt) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		typeTag:       "PropsUIPromptFileInput",
		"description": p.Description,
		"extensions":  p.Extensions,
	})
}

func (p ConfirmPrompt) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		typeTag:  "PropsUIPromptConfirm",
		"text":   p.Text,
		"ok":     p.Ok,
		"cancel": p.Cancel,
	})
}

func (p ConsentFormPrompt) MarshalJSON() ([]byte, error) {
	tables := p.Tables
	if tables == nil {
		tables = []ConsentTable{}
	}
	metaTables := p.MetaTables
	if metaTables == nil {
		metaTables = []ConsentTable{}
	}
	out := map[string]any{
		typeTag:      "PropsUIPromptConsentForm",
		"tables":     tables,
		"metaTables": metaTables,
	}
	if len(p.DonateButton) > 0 {
		out["donateButton"] = p.DonateButton
	}
	return json.Marshal(out)
}

func (t ConsentTable) MarshalJSON() ([]byte, error) {
	frame, err := DataFrameJSON(t.Headers, t.Rows)
	if err != nil {
		return nil, err
	}
	visualizations := t.Visualizations
	if visualizations == nil {
		visualizations = []Visualization{}
	}
	return json.Marshal(map[string]any{
		typeTag:          "PropsUIPromptConsentFormTable",
		"id":             t.ID,
		"title":          t.Title,
		"description":    t.Description,
		"data_frame":     frame,
		"visualizations": visualizations,
	})
}

func (p QuestionnairePrompt) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		typeTag:       "PropsUIPromptQuestionnaire",
		"description": p.Description,
		"questions":   p.Questions,
	})
}

func (q Question) MarshalJSON() ([]byte, error) {
	switch q.Kind {
	case QuestionMultipleChoice:
		choices := q.Choices
		if choices == nil {
			choices = []Translatable{}
		}
		return json.Marshal(map[string]any{
			typeTag:    "PropsUIQuestionMultipleChoice",
			"id":       q.ID,
			"question": q.Question,
			"choices":  choices,
		})
	default:
		return json.Marshal(map[string]any{
			typeTag:    "PropsUIQuestionOpen",
			"id":       q.ID,
			"question": q.Question,
		})
	}
}

// DataFrameJSON renders rows in the column-oriented layout the consent
// form reads: {"column": {"0": value, "1": value}}.
func DataFrameJSON(headers []string, rows [][]string) (string, error) {
	columns := make(map[string]map[string]string, len(headers))
	for _, header := range headers {
		columns[header] = make(map[string]string, len(rows))
	}
	for i, row := range rows {
		index := strconv.Itoa(i)
		for j, header := range headers {
			value := ""
			if j < len(row) {
				value = row[j]
			}
			columns[header][index] = value
		}
	}
	raw, err := json.Marshal(columns)
	if err != nil {
		return "", fmt.Errorf("marshal data frame: %w", err)
	}
	return string(raw), nil
}

type wireResponse struct {
	Type  string          `json:"__type__"`
	Value json.RawMessage `json:"value"`
}

// DecodeResponse parses a host response envelope into its variant.
func DecodeResponse(raw []byte) (Response, error) {
	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, WrapError(ErrInvalidInput, "decode response", err)
	}

	switch wire.Type {
	case "PayloadString":
		var value string
		if err := json.Unmarshal(wire.Value, &value); err != nil {
			return nil, WrapError(ErrInvalidInput, "decode string payload", err)
		}
		return PayloadString{Value: value}, nil
	case "PayloadTrue":
		return PayloadTrue{}, nil
	case "PayloadFalse":
		return PayloadFalse{}, nil
	case "PayloadJSON":
		return PayloadJSON{Value: jsonPayloadText(wire.Value)}, nil
	case "PayloadVoid", "":
		return PayloadVoid{}, nil
	default:
		return PayloadUnknown{Type: wire.Type}, nil
	}
}

// jsonPayloadText accepts both a JSON-encoded string and an inline JSON value.
func jsonPayloadText(value json.RawMessage) string {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	return string(trimmed)
}

// ResponseType names a response variant for logs and metrics.
func ResponseType(resp Response) string {
	switch r := resp.(type) {
	case PayloadString:
		return "PayloadString"
	case PayloadTrue:
		return "PayloadTrue"
	case PayloadFalse:
		return "PayloadFalse"
	case PayloadJSON:
		return "PayloadJSON"
	case PayloadVoid:
		return "PayloadVoid"
	case PayloadUnknown:
		return r.Type
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", resp)
	}
}
