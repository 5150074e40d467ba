package verdict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeGenerator records requests and returns a canned candidate.
type fakeGenerator struct {
	calls []Request
	text  string
	err   error
}

func (f *fakeGenerator) Generate(ctx context.Context, req Request) (string, error) {
	f.calls = append(f.calls, req)
	return f.text, f.err
}

func TestAnalyze_Pressure(t *testing.T) {
	const candidate = `{"is_manipulative": true, "explanation": "Rushing you.", "suggested_response": "I will call back."}`
	gen := &fakeGenerator{text: candidate}
	a := NewAnalyzer(gen, zerolog.Nop())

	raw, err := a.Analyze(context.Background(), ModePressure, "act now or lose your account")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if string(raw) != candidate {
		t.Errorf("raw = %s, want candidate passed through unmodified", raw)
	}

	if len(gen.calls) != 1 {
		t.Fatalf("generator called %d times, want 1", len(gen.calls))
	}
	req := gen.calls[0]
	if req.Transcript != "act now or lose your account" {
		t.Errorf("Transcript = %q", req.Transcript)
	}
	if req.SystemInstruction != pressurePrompt {
		t.Error("pressure mode should send the pressure prompt")
	}
	if req.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", req.Temperature, DefaultTemperature)
	}
	if _, ok := req.Schema.Properties["is_manipulative"]; !ok {
		t.Error("pressure schema missing is_manipulative")
	}
	if len(req.Schema.Required) != 3 {
		t.Errorf("Required = %v, want 3 fields", req.Schema.Required)
	}

	v, err := DecodePressure(raw)
	if err != nil {
		t.Fatalf("DecodePressure: %v", err)
	}
	if !v.IsManipulative || v.SuggestedResponse != "I will call back." {
		t.Errorf("decoded verdict = %+v", v)
	}
}

func TestAnalyze_Clarity(t *testing.T) {
	const candidate = `{"alerts":[{"type":"jargon","title":"Escrow","message":"A held account.","suggestion":"Ask who holds it."}],"summary":"They want a deposit."}`
	gen := &fakeGenerator{text: "\n" + candidate + "\n"}
	a := NewAnalyzer(gen, zerolog.Nop(), WithTemperature(0.3))

	raw, err := a.Analyze(context.Background(), ModeClarity, "the escrow deposit")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if string(raw) != candidate {
		t.Errorf("raw = %s", raw)
	}
	req := gen.calls[0]
	if req.SystemInstruction != clarityPrompt {
		t.Error("clarity mode should send the clarity prompt")
	}
	if req.Temperature != 0.3 {
		t.Errorf("Temperature = %v, want 0.3", req.Temperature)
	}
	if _, ok := req.Schema.Properties["alerts"]; !ok {
		t.Error("clarity schema missing alerts")
	}

	v, err := DecodeClarity(raw)
	if err != nil {
		t.Fatalf("DecodeClarity: %v", err)
	}
	if len(v.Alerts) != 1 || v.Alerts[0].Type != "jargon" || v.Summary != "They want a deposit." {
		t.Errorf("decoded verdict = %+v", v)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name       string
		gen        Generator
		mode       Mode
		transcript string
		want       error
		wantCalls  int
	}{
		{"empty_transcript", &fakeGenerator{}, ModePressure, "", ErrTranscriptRequired, 0},
		{"blank_transcript", &fakeGenerator{}, ModePressure, "   ", ErrTranscriptRequired, 0},
		{"unknown_mode", &fakeGenerator{}, Mode("poetry"), "act now", ErrUnknownMode, 0},
		{"upstream_failure", &fakeGenerator{err: fmt.Errorf("%w: status 503", ErrUpstream)}, ModePressure, "act now", ErrUpstream, 1},
		{"no_candidate", &fakeGenerator{err: ErrInvalidResponse}, ModePressure, "act now", ErrInvalidResponse, 1},
		{"not_json", &fakeGenerator{text: "I think this is manipulative."}, ModePressure, "act now", ErrMalformedVerdict, 1},
		{"json_null", &fakeGenerator{text: "null"}, ModePressure, "act now", ErrMalformedVerdict, 1},
		{"wrong_field_type", &fakeGenerator{text: `{"is_manipulative":"yes"}`}, ModePressure, "act now", ErrMalformedVerdict, 1},
		{"clarity_alerts_not_array", &fakeGenerator{text: `{"alerts":"none","summary":""}`}, ModeClarity, "escrow", ErrMalformedVerdict, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAnalyzer(tt.gen, zerolog.Nop())
			_, err := a.Analyze(context.Background(), tt.mode, tt.transcript)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if got := len(tt.gen.(*fakeGenerator).calls); got != tt.wantCalls {
				t.Errorf("generator called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestAnalyze_NotConfigured(t *testing.T) {
	a := NewAnalyzer(nil, zerolog.Nop())
	if a.Configured() {
		t.Error("Configured should be false without a generator")
	}

	// Input validation runs before the credential check.
	if _, err := a.Analyze(context.Background(), ModePressure, ""); !errors.Is(err, ErrTranscriptRequired) {
		t.Errorf("err = %v, want ErrTranscriptRequired", err)
	}
	if _, err := a.Analyze(context.Background(), ModePressure, "act now"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestAnalyze_Observer(t *testing.T) {
	var outcomes []string
	obs := func(mode Mode, outcome string, elapsed time.Duration) {
		outcomes = append(outcomes, string(mode)+":"+outcome)
	}
	a := NewAnalyzer(&fakeGenerator{text: `{"is_manipulative":false,"explanation":"","suggested_response":""}`}, zerolog.Nop(), WithObserver(obs))
	a.Analyze(context.Background(), ModePressure, "limited time offer")
	a.Analyze(context.Background(), ModePressure, "")

	want := []string{"pressure:ok", "pressure:missing_transcript"}
	if len(outcomes) != len(want) {
		t.Fatalf("outcomes = %v, want %v", outcomes, want)
	}
	for i := range want {
		if outcomes[i] != want[i] {
			t.Errorf("outcome %d = %q, want %q", i, outcomes[i], want[i])
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeClarity, false},
		{"pressure", ModePressure, false},
		{" Clarity ", ModeClarity, false},
		{"summary", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in, ModeClarity)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSchemasMatchVerdictTypes(t *testing.T) {
	// Every required schema field must be a JSON field of the verdict type.
	check := func(t *testing.T, mode Mode, sample any) {
		b, err := json.Marshal(sample)
		if err != nil {
			t.Fatal(err)
		}
		var fields map[string]any
		json.Unmarshal(b, &fields)
		for _, req := range mode.ResponseSchema().Required {
			if _, ok := fields[req]; !ok {
				t.Errorf("%s schema requires %q but verdict type has no such field", mode, req)
			}
		}
	}
	check(t, ModePressure, PressureVerdict{})
	check(t, ModeClarity, ClarityVerdict{})
}
