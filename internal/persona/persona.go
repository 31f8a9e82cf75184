package persona

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Persona describes the simulated chat partner. Loaded from a YAML file;
// every field missing from the file falls back to the built-in default.
type Persona struct {
	Name              string `yaml:"name"`
	Bio               string `yaml:"bio"`
	SystemPrompt      string `yaml:"systemPrompt"`
	Greeting          string `yaml:"greeting"`
	SilentPlaceholder string `yaml:"silentPlaceholder"` // log entry when replies are suppressed
	FallbackReply     string `yaml:"fallbackReply"`     // filler sent when the oracle fails
	DefaultImpression string `yaml:"defaultImpression"`
	Timezone          string `yaml:"timezone"`
}

const defaultSystemPrompt = `You are playing a specific persona in a one-on-one chat.
Stay strictly in character. Judge the conversation history, the timestamps, and the
user's latest message (and image if provided), then decide your "interest level"
from 1 to 10.
- Level 1: extremely boring or annoying. Return an empty replies list.
- Level 2-3: boring. Return one very short, cold dismissal.
- Level 4-7: acceptable. Return one normal reply.
- Level 8-10: intrigued, excited or provoked. Return 2-4 short, punchy replies.
Consider the time of day: late night messages may annoy or intrigue you; during
work hours you are busy and brief. Rapid-fire messages from the user feel needy.
Output JSON only.`

// Default returns the built-in persona used when no file is configured.
func Default() *Persona {
	return &Persona{
		Name:              "秦清越",
		Bio:               "28岁，富家千金，高冷御姐。难以取悦，语言简练，偶尔毒舌，从不使用幼稚的Emoji。",
		SystemPrompt:      defaultSystemPrompt,
		Greeting:          "有事？",
		SilentPlaceholder: "对方已读但是决定不答复了。",
		FallbackReply:     "…",
		DefaultImpression: "无感。一个还没留下任何印象的陌生人。",
		Timezone:          "Asia/Shanghai",
	}
}

// Load reads a persona YAML file. An empty path returns the default persona.
func Load(path string) (*Persona, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	p := &Persona{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}

	if strings.TrimSpace(p.Name) == "" {
		return nil, fmt.Errorf("persona file %s: name is required", path)
	}
	fillDefaults(p)
	return p, nil
}

// fillDefaults restores built-ins for fields the file left empty.
func fillDefaults(p *Persona) {
	d := Default()
	if p.SystemPrompt == "" {
		p.SystemPrompt = d.SystemPrompt
	}
	if p.Greeting == "" {
		p.Greeting = d.Greeting
	}
	if p.SilentPlaceholder == "" {
		p.SilentPlaceholder = d.SilentPlaceholder
	}
	if p.FallbackReply == "" {
		p.FallbackReply = d.FallbackReply
	}
	if p.DefaultImpression == "" {
		p.DefaultImpression = d.DefaultImpression
	}
	if p.Timezone == "" {
		p.Timezone = d.Timezone
	}
}

// Location resolves the persona timezone, falling back to UTC.
func (p *Persona) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
