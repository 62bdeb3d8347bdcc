package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/saves"
)

// Transcript formats.
const (
	FormatMarkdown = "md"
	FormatHTML     = "html"
)

// TranscriptInput selects the slot and destination of a transcript export.
type TranscriptInput struct {
	ID     string
	Path   string // optional, default: <exports>/<name>-<timestamp>.<format>
	Format string // md (default) or html
}

// Output describes a written export file.
type Output struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Transcript renders a save slot as a markdown document.
func Transcript(slot game.SaveData) []byte {
	var b bytes.Buffer
	c := slot.Character
	if c == nil {
		c = &game.Character{Name: "Unknown"}
	}

	fmt.Fprintf(&b, "# %s\n\n", c.Name)
	fmt.Fprintf(&b, "*%s* · %s", c.Theme, slot.Phase)
	if !slot.LastSaved.IsZero() {
		fmt.Fprintf(&b, " · saved %s", slot.LastSaved.UTC().Format(time.RFC3339))
	}
	b.WriteString("\n\n")

	b.WriteString("## Character\n\n")
	fmt.Fprintf(&b, "- Health: %d/%d\n", c.Health, c.MaxHealth)
	if c.Alignment != "" {
		fmt.Fprintf(&b, "- Alignment: %s\n", c.Alignment)
	}
	for _, cu := range c.Customizations {
		fmt.Fprintf(&b, "- %s: %s\n", cu.Area, strings.Join(cu.Selections, ", "))
	}
	if len(c.Inventory) > 0 {
		b.WriteString("\n**Inventory**\n\n")
		for _, it := range c.Inventory {
			fmt.Fprintf(&b, "- %s ×%d (%s)\n", it.Name, it.Quantity, it.Type)
		}
	}
	if len(c.Companions) > 0 {
		b.WriteString("\n**Companions**\n\n")
		for _, co := range c.Companions {
			fmt.Fprintf(&b, "- %s, %s\n", co.Name, co.Kind)
		}
	}

	b.WriteString("\n## Story\n\n")
	for _, m := range slot.Messages {
		text := strings.TrimSpace(m.Text)
		switch m.Speaker {
		case game.SpeakerPlayer:
			fmt.Fprintf(&b, "> **You:** %s\n\n", text)
		case game.SpeakerSystem:
			fmt.Fprintf(&b, "*%s*\n\n", text)
		default:
			fmt.Fprintf(&b, "%s\n\n", text)
		}
	}
	return b.Bytes()
}

// RenderHTML converts markdown to HTML. Raw HTML in the source is not
// passed through.
func RenderHTML(md []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(md, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportTranscript writes the transcript of one save slot.
func ExportTranscript(ctx context.Context, repo *saves.Repository, policy Policy, in TranscriptInput) (*Output, error) {
	format := strings.ToLower(strings.TrimSpace(in.Format))
	if format == "" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatHTML {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("format must be md or html (got %q)", in.Format))
	}

	slot, err := repo.Load(ctx, in.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	path := in.Path
	if path == "" {
		path = filepath.Join(policy.ExportsDir,
			fmt.Sprintf("%s-%s.%s", SanitizeForFilename(slot.Character.Name), now.Format("2006-01-02T150405"), format))
	}
	if err := policy.Validate(path, PathCheckWrite, "."+format); err != nil {
		return nil, err
	}

	body := Transcript(slot)
	if format == FormatHTML {
		if body, err = RenderHTML(body); err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	err = writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Output{Path: path, Count: len(slot.Messages), ExportedAt: now.Unix()}, nil
}
