package channel

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"coldchat/internal/bus"
	"coldchat/internal/domain"
	"coldchat/internal/session"
)

// CLI renders the conversation in a terminal REPL: read receipts, the
// typing indicator, reply bursts, silent-read placeholders and the
// tier-up banner.
type CLI struct {
	session *session.Session
	logger  *slog.Logger
	in      io.Reader
	out     io.Writer

	// ShowDebug renders interest levels and oracle thoughts inline.
	showDebug bool

	typing   bool
	typeMu   sync.Mutex
	typeStop chan struct{}

	pendingImage string
}

type CLIConfig struct {
	Session   *session.Session
	Logger    *slog.Logger
	In        io.Reader
	Out       io.Writer
	ShowDebug bool
}

func NewCLI(cfg CLIConfig) *CLI {
	if cfg.In == nil {
		cfg.In = os.Stdin
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CLI{
		session:   cfg.Session,
		logger:    cfg.Logger,
		in:        cfg.In,
		out:       cfg.Out,
		showDebug: cfg.ShowDebug,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start subscribes to the session's event stream and runs the REPL until
// the context is cancelled or the user quits.
func (c *CLI) Start(ctx context.Context) error {
	p := c.session.Persona()

	c.session.Bus().On("*", c.render)

	fmt.Fprintf(c.out, "Chatting with %s. /image <path> attaches a picture, /reset clears, /quit exits.\n", p.Name)
	for _, m := range c.session.Snapshot() {
		c.printMessage(&m)
	}
	c.prompt()

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return nil // EOF
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "/quit" || line == "/exit" || line == "/q":
			return nil
		case line == "/reset":
			c.confirmReset(scanner)
			c.prompt()
			continue
		case line == "/score":
			fmt.Fprintf(c.out, "affinity %d/100 (%s) — %s\n",
				c.session.Score(), c.session.Tier(), c.session.Impression())
			c.prompt()
			continue
		case line == "/persona":
			fmt.Fprintf(c.out, "%s\n%s\n", p.Name, p.Bio)
			c.prompt()
			continue
		case strings.HasPrefix(line, "/image "):
			c.attachImage(strings.TrimSpace(strings.TrimPrefix(line, "/image ")))
			c.prompt()
			continue
		}

		image := c.pendingImage
		c.pendingImage = ""
		if !c.session.Submit(line, image) {
			// empty input with no attachment: nothing to send
			c.prompt()
		}
	}
}

func (c *CLI) prompt() {
	if c.pendingImage != "" {
		fmt.Fprint(c.out, "You (image attached)> ")
		return
	}
	fmt.Fprint(c.out, "You> ")
}

// confirmReset asks before discarding the conversation; declining is a
// no-op.
func (c *CLI) confirmReset(scanner *bufio.Scanner) {
	fmt.Fprint(c.out, "Clear the whole conversation? [y/N] ")
	if !scanner.Scan() {
		return
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	if answer != "y" && answer != "yes" {
		fmt.Fprintln(c.out, "kept.")
		return
	}
	c.session.Reset()
}

// attachImage encodes a local file as a data-URL payload for the next
// submission.
func (c *CLI) attachImage(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(c.out, "cannot read %s: %v\n", path, err)
		return
	}
	mimeType := mimeFromExt(filepath.Ext(path))
	c.pendingImage = "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	fmt.Fprintf(c.out, "attached %s (%d bytes); it will be sent with your next message\n", path, len(data))
}

func mimeFromExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// render handles one session event on the bus goroutine.
func (c *CLI) render(e bus.Event) {
	p := c.session.Persona()
	switch e.Type {
	case bus.EventMessageAppended:
		if e.Message.Sender == domain.SenderUser {
			return // the user just typed it
		}
		c.stopTyping()
		fmt.Fprint(c.out, "\r\033[K")
		c.printMessage(e.Message)
		c.prompt()
	case bus.EventStatusChanged:
		if e.Status == domain.StatusRead {
			fmt.Fprint(c.out, "\r\033[K✓✓ read\n")
			c.prompt()
		}
	case bus.EventMessageAnnotated:
		if c.showDebug && e.Message.InterestLevel > 0 {
			fmt.Fprintf(c.out, "\r\033[K[interest %d/10]\n", e.Message.InterestLevel)
			c.prompt()
		}
	case bus.EventTypingStarted:
		c.startTyping(p.Name)
	case bus.EventTypingStopped:
		c.stopTyping()
	case bus.EventTierUp:
		fmt.Fprintf(c.out, "\r\033[K♥ %s seems a little warmer toward you (%d/100, %s)\n",
			p.Name, e.Score, e.Tier)
		c.prompt()
	case bus.EventImpressionUpdated:
		if c.showDebug {
			fmt.Fprintf(c.out, "\r\033[K[impression] %s\n", e.Impression)
			c.prompt()
		}
	case bus.EventReset:
		fmt.Fprint(c.out, "\r\033[K(conversation cleared)\n")
		for _, m := range c.session.Snapshot() {
			c.printMessage(&m)
		}
	}
}

func (c *CLI) printMessage(m *domain.Message) {
	switch m.Sender {
	case domain.SenderSystem:
		fmt.Fprintf(c.out, "· %s\n", m.Text)
	case domain.SenderBot:
		fmt.Fprintf(c.out, "%s: %s\n", c.session.Persona().Name, m.Text)
	default:
		fmt.Fprintf(c.out, "You: %s\n", m.Text)
	}
	if c.showDebug && m.Thoughts != "" {
		fmt.Fprintf(c.out, "  [thoughts] %s\n", m.Thoughts)
	}
}

func (c *CLI) startTyping(name string) {
	c.typeMu.Lock()
	defer c.typeMu.Unlock()
	if c.typing {
		return
	}
	c.typing = true
	c.typeStop = make(chan struct{})
	go func(stop chan struct{}) {
		frames := []string{".", "..", "..."}
		i := 0
		ticker := time.NewTicker(300 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fmt.Fprintf(c.out, "\r%s is typing%s   ", name, frames[i%len(frames)])
				i++
			}
		}
	}(c.typeStop)
}

func (c *CLI) stopTyping() {
	c.typeMu.Lock()
	defer c.typeMu.Unlock()
	if !c.typing {
		return
	}
	c.typing = false
	close(c.typeStop)
}
