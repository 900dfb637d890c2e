// Package demo provides an offline llm.Provider that finds transcript errors
// with deterministic heuristics instead of a model. It is selected when no
// real backend is configured so the whole pipeline can be exercised without
// credentials.
//
// The provider reads the serialized chunk from the last message and answers
// with a JSON array in the same shape a model is asked to produce. It
// detects doubled words, untranslated steno outlines, comma-terminated
// honorifics, a small list of common misspellings, and speaker names spelled
// inconsistently within the chunk.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/MrWong99/stenoproof/internal/speaker"
	"github.com/MrWong99/stenoproof/internal/transcript"
	"github.com/MrWong99/stenoproof/pkg/provider/llm"
)

// Finding is one record of the JSON array the provider returns.
type Finding struct {
	PageNumber int     `json:"pageNumber"`
	LineNumber int     `json:"lineNumber"`
	ErrorText  string  `json:"errorText"`
	Correction string  `json:"correction"`
	ErrorType  string  `json:"errorType"`
	Confidence float64 `json:"confidence"`
}

var misspellings = map[string]string{
	"wittness":   "witness",
	"recieve":    "receive",
	"teh":        "the",
	"objeciton":  "objection",
	"definately": "definitely",
	"occured":    "occurred",
	"seperate":   "separate",
	"arguement":  "argument",
	"testimoney": "testimony",
	"sustianed":  "sustained",
}

var (
	stenoRe     = regexp.MustCompile(`^/?[STKPWHRAO*EUFBLGDZ-]{3,}$`)
	honorificRe = regexp.MustCompile(`\b(MR|MS|MRS|DR),\s`)
)

// Provider implements llm.Provider with heuristics.
type Provider struct {
	matcher *speaker.Matcher
}

// New returns a demo Provider.
func New() *Provider {
	return &Provider{matcher: speaker.New()}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("demo: %w", err)
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("demo: request has no messages")
	}

	findings := p.Analyze(transcript.ParseChunkText(req.Messages[len(req.Messages)-1].Content))
	if len(findings) == 0 {
		return &llm.CompletionResponse{Content: "[]"}, nil
	}
	out, err := json.MarshalIndent(findings, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("demo: encode findings: %w", err)
	}
	return &llm.CompletionResponse{Content: string(out)}, nil
}

// Analyze runs every heuristic over lines and returns findings in line
// order.
func (p *Provider) Analyze(lines []transcript.TextLine) []Finding {
	var out []Finding
	counts := make(map[string]int)
	for _, l := range lines {
		if tag := transcript.DetectSpeaker(l.Content); tag != "" {
			counts[strings.ToUpper(tag)]++
		}
	}
	variants := make(map[string]speaker.Variant)
	for _, v := range p.matcher.Variants(counts) {
		variants[v.Tag] = v
	}

	for _, l := range lines {
		at := func(errText, correction, kind string, conf float64) {
			out = append(out, Finding{
				PageNumber: l.PageNumber,
				LineNumber: l.LineNumber,
				ErrorText:  errText,
				Correction: correction,
				ErrorType:  kind,
				Confidence: conf,
			})
		}

		if tag := transcript.DetectSpeaker(l.Content); tag != "" {
			if v, ok := variants[strings.ToUpper(tag)]; ok {
				at(tag, v.Canonical, "inconsistency", round2(v.Score))
			}
		}
		if m := honorificRe.FindStringSubmatch(l.Content); m != nil {
			at(m[1]+",", m[1]+".", "punctuation", 0.9)
		}

		words := strings.Fields(l.Content)
		for i, w := range words {
			bare := strings.TrimFunc(w, unicode.IsPunct)
			if i > 0 && bare != "" && strings.EqualFold(bare, strings.TrimFunc(words[i-1], unicode.IsPunct)) {
				at(words[i-1]+" "+w, w, "duplicate word", 0.95)
			}
			if fix, ok := misspellings[strings.ToLower(bare)]; ok {
				at(bare, matchCase(bare, fix), "spelling", 0.9)
			}
			if strings.HasPrefix(w, "/") && stenoRe.MatchString(strings.TrimRight(w, ".,;:?!")) {
				at(strings.TrimRight(w, ".,;:?!"), "[untranslated steno - verify]", "untranslated steno", 0.85)
			}
		}
	}
	return out
}

// CountTokens implements llm.Provider.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.EstimateTokens(messages), nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.ModelCapabilities{ContextWindow: 1 << 20, MaxOutputTokens: 1 << 16}
}

func matchCase(orig, fix string) string {
	switch {
	case orig == strings.ToUpper(orig):
		return strings.ToUpper(fix)
	case len(orig) > 0 && unicode.IsUpper(rune(orig[0])):
		return strings.ToUpper(fix[:1]) + fix[1:]
	}
	return fix
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

var _ llm.Provider = (*Provider)(nil)
