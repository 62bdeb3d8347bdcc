package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/export"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/saves"
	"github.com/roninrabbat-maker/adventure-forge/internal/web"
)

// newCLIApp creates the CLI application with all commands. rt may be nil
// when only help or version output is needed.
func newCLIApp(rt *runtime) *cli.App {
	app := &cli.App{
		Name:    "forge",
		Usage:   "Narrative RPG session orchestrator",
		Version: Version,
		Commands: []*cli.Command{
			playCmd(rt),
			savesCmd(rt),
			exportCmd(rt),
			importCmd(rt),
			serveCmd(rt),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func playCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "play",
		Usage: "Play interactively in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "load", Aliases: []string{"l"}, Usage: "Save ID to resume"},
		},
		Action: func(c *cli.Context) error {
			p := newPlayer(rt.engine, c.App.Reader, c.App.Writer)
			if id := c.String("load"); id != "" {
				p.exec(c.Context, "/load "+id)
			}
			return p.run(c.Context)
		},
	}
}

func savesCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "saves",
		Usage: "Inspect and manage save slots",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List save slots, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "theme", Aliases: []string{"t"}, Usage: "Only slots in this world"},
					&cli.BoolFlag{Name: "json", Usage: "Output JSON instead of a table"},
				},
				Action: func(c *cli.Context) error {
					slots, err := rt.saves.List(c.Context)
					if err != nil && !errors.Is(err, errors.ErrStorageCorrupted) {
						return outputError(err)
					}
					if err != nil {
						fmt.Fprintf(c.App.ErrWriter, "warning: %s\n", errors.As(err).Message)
					}
					slots = filterByTheme(slots, c.String("theme"))
					if c.Bool("json") {
						return outputJSON(c.App.Writer, summarize(slots))
					}
					renderSavesTable(c.App.Writer, slots)
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "Print a save slot as a markdown transcript",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "save ID")
					if err != nil {
						return err
					}
					slot, err := rt.saves.Load(c.Context, id)
					if err != nil {
						return outputError(err)
					}
					_, err = c.App.Writer.Write(export.Transcript(slot))
					return err
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a save slot",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "save ID")
					if err != nil {
						return err
					}
					if err := rt.saves.Delete(c.Context, id); err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"deleted": true, "id": id})
				},
			},
			{
				Name:  "quarantine",
				Usage: "List keys of quarantined save collections",
				Action: func(c *cli.Context) error {
					keys, err := rt.saves.Quarantined(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, map[string]any{"keys": keys})
				},
			},
		},
	}
}

func exportCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export transcripts or a full backup",
		Subcommands: []*cli.Command{
			{
				Name:      "transcript",
				Usage:     "Write one save slot as markdown or HTML",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file (default: ~/.forge/exports/<name>-<time>.<format>)"},
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: export.FormatMarkdown, Usage: "md|html"},
				},
				Action: func(c *cli.Context) error {
					id, err := requireArg(c, "save ID")
					if err != nil {
						return err
					}
					out, err := export.ExportTranscript(c.Context, rt.saves, rt.policy, export.TranscriptInput{
						ID:     id,
						Path:   c.String("path"),
						Format: c.String("format"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, out)
				},
			},
			{
				Name:  "backup",
				Usage: "Write every save slot to a JSONL backup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output file (default: ~/.forge/exports/saves-<time>.jsonl)"},
				},
				Action: func(c *cli.Context) error {
					out, err := export.ExportBackup(c.Context, rt.saves, rt.policy, c.String("path"))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, out)
				},
			},
		},
	}
}

func importCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import save slots from a JSONL backup",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(saves.MergeError), Usage: "Collision mode: error|replace|skip"},
		},
		Action: func(c *cli.Context) error {
			path, err := requireArg(c, "backup path")
			if err != nil {
				return err
			}
			mode, err := saves.ParseMergeMode(c.String("mode"))
			if err != nil {
				return outputError(err)
			}
			out, err := export.ImportBackup(c.Context, rt.saves, rt.policy, export.ImportInput{Path: path, Mode: mode})
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(c.App.Writer, out); err != nil {
				return err
			}
			if mode == saves.MergeError && len(out.Errors) > 0 {
				return cli.Exit(fmt.Sprintf("[%s] %d invalid line(s), nothing imported", errors.ErrInvalidRequest, len(out.Errors)), 1)
			}
			return nil
		},
	}
}

func serveCmd(rt *runtime) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the save viewer web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8341, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(rt.saves, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// saveSummary is the JSON row of `saves list --json`.
type saveSummary struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Theme     string     `json:"theme"`
	Phase     game.Phase `json:"phase"`
	Health    int        `json:"health"`
	MaxHealth int        `json:"maxHealth"`
	Messages  int        `json:"messages"`
	LastSaved string     `json:"lastSaved"`
}

func summarize(slots []game.SaveData) []saveSummary {
	out := make([]saveSummary, 0, len(slots))
	for _, s := range slots {
		out = append(out, saveSummary{
			ID:        s.ID,
			Name:      s.Character.Name,
			Theme:     s.Character.Theme,
			Phase:     s.Phase,
			Health:    s.Character.Health,
			MaxHealth: s.Character.MaxHealth,
			Messages:  len(s.Messages),
			LastSaved: s.LastSaved.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	return out
}

// filterByTheme keeps slots with a character in theme (all when theme is
// blank) and orders them newest first.
func filterByTheme(slots []game.SaveData, theme string) []game.SaveData {
	out := make([]game.SaveData, 0, len(slots))
	for _, s := range slots {
		if s.Character == nil {
			continue
		}
		if strings.TrimSpace(theme) != "" && !game.SameTheme(s.Character.Theme, theme) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastSaved.After(out[j].LastSaved) })
	return out
}

func renderSavesTable(w io.Writer, slots []game.SaveData) {
	if len(slots) == 0 {
		fmt.Fprintln(w, "No saved games.")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"ID", "Character", "World", "Phase", "Health", "Messages", "Last saved"})
	for _, s := range slots {
		tw.AppendRow(table.Row{
			s.ID,
			s.Character.Name,
			s.Character.Theme,
			s.Phase,
			fmt.Sprintf("%d/%d", s.Character.Health, s.Character.MaxHealth),
			len(s.Messages),
			s.LastSaved.UTC().Format("2006-01-02 15:04"),
		})
	}
	tw.Render()
}

// Helper functions

func requireArg(c *cli.Context, what string) (string, error) {
	arg := strings.TrimSpace(c.Args().First())
	if arg == "" {
		return "", outputError(errors.NewInvalidRequest(what + " is required"))
	}
	return arg, nil
}

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats err for the CLI. Internal errors keep their message
// here since the user is the operator.
func outputError(err error) error {
	fe := errors.As(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", fe.Code, fe.Message), 1)
}
