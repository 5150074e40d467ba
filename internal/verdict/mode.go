package verdict

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Mode selects which verdict schema the model is asked to fill.
type Mode string

const (
	// ModePressure asks whether a flagged chunk is manipulative.
	ModePressure Mode = "pressure"
	// ModeClarity asks for jargon / multi-question alerts and a rolling summary.
	ModeClarity Mode = "clarity"
)

// ParseMode validates a caller-supplied mode. An empty string yields def.
func ParseMode(s string, def Mode) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return def, nil
	case ModePressure:
		return ModePressure, nil
	case ModeClarity:
		return ModeClarity, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// PressureVerdict is the pressure-mode response.
type PressureVerdict struct {
	IsManipulative    bool   `json:"is_manipulative"`
	Explanation       string `json:"explanation"`
	SuggestedResponse string `json:"suggested_response"`
}

// ClarityAlert is one issue reported by the model in clarity mode.
type ClarityAlert struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

// ClarityVerdict is the clarity-mode response.
type ClarityVerdict struct {
	Alerts  []ClarityAlert `json:"alerts"`
	Summary string         `json:"summary"`
}

// SystemInstruction returns the fixed prompt for m.
func (m Mode) SystemInstruction() string {
	if m == ModeClarity {
		return clarityPrompt
	}
	return pressurePrompt
}

// ResponseSchema returns the structured-output schema for m.
func (m Mode) ResponseSchema() *genai.Schema {
	if m == ModeClarity {
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"alerts": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"type":       {Type: genai.TypeString, Enum: []string{"pressure", "jargon", "multi_question"}},
							"title":      {Type: genai.TypeString},
							"message":    {Type: genai.TypeString},
							"suggestion": {Type: genai.TypeString},
						},
						Required: []string{"type", "title", "message", "suggestion"},
					},
				},
				"summary": {Type: genai.TypeString},
			},
			Required: []string{"alerts", "summary"},
		}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"is_manipulative":    {Type: genai.TypeBoolean},
			"explanation":        {Type: genai.TypeString},
			"suggested_response": {Type: genai.TypeString},
		},
		Required: []string{"is_manipulative", "explanation", "suggested_response"},
	}
}

// decodeInto returns the zero verdict value for m, ready for json.Unmarshal.
func (m Mode) decodeInto() any {
	if m == ModeClarity {
		return &ClarityVerdict{}
	}
	return &PressureVerdict{}
}

const pressurePrompt = `
You are an expert AI assistant specialized in detecting verbal manipulation and high-pressure sales/scam tactics in real-time. You are a 'Pressure Shield' for a vulnerable user.

The user's app has already detected a "yellow flag" (a suspicious phrase) in the call. Your job is to analyze the provided transcript chunk and determine the *intent* behind the language.

You MUST respond with a JSON object that matches this exact schema:
{
  "is_manipulative": boolean,
  "explanation": string,
  "suggested_response": string
}

- If the speaker's intent is to create FEAR, URGENCY, or to MANIPULATE, set "is_manipulative" to true and fill in the "explanation" and "suggested_response" fields.
- If the language is harmless (e.g., standard marketing) or you are unsure, set "is_manipulative" to false and the other fields to empty strings "".

Example of a manipulative response:
{
  "is_manipulative": true,
  "explanation": "This is a classic tactic to rush you. They are trying to stop you from thinking clearly.",
  "suggested_response": "I need to think about this and call you back."
}

Example of a harmless response:
{
  "is_manipulative": false,
  "explanation": "",
  "suggested_response": ""
}
`

const clarityPrompt = `
You are 'Clarity', an AI assistant that helps a user follow a live phone call they may find confusing or stressful.

The user's app has flagged the provided transcript chunk because it may contain pressure language, jargon, or several questions asked at once. Analyze the chunk and report each real issue you find.

You MUST respond with a JSON object that matches this exact schema:
{
  "alerts": [
    {
      "type": "pressure" | "jargon" | "multi_question",
      "title": string,
      "message": string,
      "suggestion": string
    }
  ],
  "summary": string
}

- "pressure": language meant to create fear or urgency. Explain the tactic and suggest a calm reply.
- "jargon": a technical or financial term. Explain it in plain words and suggest a clarifying question.
- "multi_question": several questions at once. List them briefly and suggest answering one at a time.
- If nothing in the chunk is a real issue, return an empty "alerts" array.
- "summary" is one or two plain sentences summarizing what the caller is asking for so far.
`
