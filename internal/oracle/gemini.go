package oracle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"coldchat/internal/domain"
	"coldchat/internal/persona"
)

// historyWindow bounds how many past messages are sent to the model.
const historyWindow = 10

// Gemini implements domain.Oracle against the Gemini API, with a response
// schema that forces the structured verdict shape.
type Gemini struct {
	client  *genai.Client
	model   string
	persona *persona.Persona
	logger  *slog.Logger
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	Persona *persona.Persona
	Logger  *slog.Logger
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is missing")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Persona == nil {
		cfg.Persona = persona.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:  client,
		model:   cfg.Model,
		persona: cfg.Persona,
		logger:  cfg.Logger,
	}, nil
}

func (g *Gemini) Name() string { return "gemini" }

// verdictSchema constrains the model output to the verdict contract.
// impression stays optional; the prompt asks for it only when requested.
var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"interestLevel": {
			Type:        genai.TypeInteger,
			Description: "How interested the persona is in this turn, 1-10.",
		},
		"thoughts": {
			Type:        genai.TypeString,
			Description: "Internal monologue explaining the interest level.",
		},
		"replies": {
			Type:        genai.TypeArray,
			Items:       &genai.Schema{Type: genai.TypeString},
			Description: "Replies to send, in order. Empty when ignoring the user.",
		},
		"impression": {
			Type:        genai.TypeString,
			Description: "One-sentence running opinion of the user, only when asked for.",
		},
	},
	Required: []string{"interestLevel", "thoughts", "replies"},
}

// Generate performs one scoring call. Any transport error, empty output or
// malformed verdict is returned as an error; the caller substitutes the
// fallback verdict.
func (g *Gemini) Generate(ctx context.Context, req domain.OracleRequest) (*domain.Verdict, error) {
	loc := g.persona.Location()

	history := req.History
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var contents []*genai.Content
	for _, h := range history {
		role := genai.Role(genai.RoleModel)
		if h.Sender == domain.SenderUser {
			role = genai.RoleUser
		}
		parts := []*genai.Part{genai.NewPartFromText(formatLine(h.Timestamp, h.Text, loc))}
		if p := imagePart(h.Image); p != nil {
			parts = append(parts, p)
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	now := req.CurrentTime
	if now.IsZero() {
		now = time.Now()
	}
	latest := []*genai.Part{genai.NewPartFromText(formatLine(now, req.LatestText, loc))}
	if p := imagePart(req.LatestImage); p != nil {
		latest = append(latest, p)
	}
	contents = append(contents, genai.NewContentFromParts(latest, genai.RoleUser))

	// Mood swings wanted: run hot.
	temp := float32(1.2)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(BuildSystemPrompt(g.persona, req), genai.RoleUser),
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
		ResponseSchema:    verdictSchema,
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini returned empty text")
	}

	var verdict domain.Verdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return nil, fmt.Errorf("gemini verdict parse: %w", err)
	}
	if err := verdict.Validate(); err != nil {
		return nil, fmt.Errorf("gemini verdict invalid: %w", err)
	}

	g.logger.Debug("oracle verdict",
		"interest", verdict.InterestLevel,
		"replies", len(verdict.Replies),
		"impression", verdict.Impression != "",
	)
	return &verdict, nil
}

// Healthy verifies credentials and model reachability with a token count,
// which is free of generation cost.
func (g *Gemini) Healthy(ctx context.Context) error {
	contents := []*genai.Content{genai.NewContentFromText("ping", genai.RoleUser)}
	if _, err := g.client.Models.CountTokens(ctx, g.model, contents, nil); err != nil {
		return fmt.Errorf("gemini not reachable: %w", err)
	}
	return nil
}

// imagePart decodes a data-URL payload ("data:image/png;base64,...") into
// an inline part. Anything unparseable is skipped rather than failing the
// whole call.
func imagePart(dataURL string) *genai.Part {
	if dataURL == "" {
		return nil
	}
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil
	}
	mimeType, _, _ := strings.Cut(meta, ";")
	if mimeType == "" || !strings.Contains(meta, "base64") {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil
	}
	return genai.NewPartFromBytes(raw, mimeType)
}
