package oracle

import (
	"fmt"
	"strings"
	"time"

	"coldchat/internal/domain"
	"coldchat/internal/persona"
)

const timeLayout = "2006-01-02 15:04:05"

// BuildSystemPrompt assembles the full system instruction for one call:
// persona identity, behavioral rules, wall-clock time for day/night tone,
// and the current affinity so the oracle can modulate warmth.
func BuildSystemPrompt(p *persona.Persona, req domain.OracleRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are pretending to be %q in a one-on-one chat.\n", p.Name)
	if p.Bio != "" {
		fmt.Fprintf(&b, "Persona: %s\n\n", p.Bio)
	}
	b.WriteString(p.SystemPrompt)
	b.WriteString("\n\n")

	now := req.CurrentTime
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current time: %s\n", now.In(p.Location()).Format(timeLayout))
	fmt.Fprintf(&b, "Messages are formatted as [timestamp] content.\n")
	fmt.Fprintf(&b, "Your current affinity toward the user is %d/100 (%s). ",
		req.AffinityScore, req.AffinityTier)
	b.WriteString("Let a higher affinity soften your tone slightly; a low one keeps you cold.\n")

	if req.RequestImpression {
		b.WriteString("\nAdditionally, set the \"impression\" field to one short sentence " +
			"summarizing your current overall opinion of this user. It replaces any previous impression.\n")
	}

	return b.String()
}

// formatLine renders one history entry the way the prompt expects it.
func formatLine(ts time.Time, text string, loc *time.Location) string {
	return fmt.Sprintf("[%s] %s", ts.In(loc).Format(timeLayout), text)
}
