package persona

import (
	"os"
	"path/filepath"
	"testing"
)

func writePersonaFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "persona.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write persona file: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	p, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "秦清越" {
		t.Errorf("default name = %q", p.Name)
	}
	if p.Greeting != "有事？" {
		t.Errorf("default greeting = %q", p.Greeting)
	}
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := writePersonaFile(t, "name: 林小满\nbio: 大学生\ngreeting: 嗨！\n")
	p, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "林小满" || p.Greeting != "嗨！" {
		t.Errorf("file values not applied: name=%q greeting=%q", p.Name, p.Greeting)
	}
	d := Default()
	if p.SilentPlaceholder != d.SilentPlaceholder {
		t.Errorf("silent placeholder not defaulted, got %q", p.SilentPlaceholder)
	}
	if p.FallbackReply != d.FallbackReply {
		t.Errorf("fallback reply not defaulted, got %q", p.FallbackReply)
	}
	if p.SystemPrompt != d.SystemPrompt {
		t.Error("system prompt not defaulted")
	}
}

func TestLoadRequiresName(t *testing.T) {
	path := writePersonaFile(t, "bio: 没有名字的人\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a persona without a name")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLocationFallsBackToUTC(t *testing.T) {
	p := Default()
	p.Timezone = "Not/AZone"
	if got := p.Location(); got.String() != "UTC" {
		t.Errorf("location = %s, want UTC", got)
	}
}
