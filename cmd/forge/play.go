package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/roninrabbat-maker/adventure-forge/internal/errors"
	"github.com/roninrabbat-maker/adventure-forge/internal/game"
	"github.com/roninrabbat-maker/adventure-forge/internal/generation"
	"github.com/roninrabbat-maker/adventure-forge/internal/session"
)

const playHelp = `Commands:
  /new <name> [| world]    quick start a character
  /create <name> [| world] detailed creation (then /finalize)
  /retry <tab>             re-fetch a customization tab
  /finalize                finish creation with the first option of every area
  /fate                    let fate decide the next turn
  /undo                    revert the last turn
  /recruit <name>          recruit a character the story introduced
  /save  /saves  /load <id>  /delete <id>
  /switch  /select <id>  /successor
  /continue                after death, create a successor in the same world
  /anew  /reset  /state  /help  /quit
Anything else is sent as your action.`

// player drives an engine from a line-oriented terminal.
type player struct {
	eng  *session.Engine
	in   *bufio.Scanner
	out  io.Writer
	seen int // messages already printed
	done bool
}

func newPlayer(eng *session.Engine, in io.Reader, out io.Writer) *player {
	return &player{eng: eng, in: bufio.NewScanner(in), out: out}
}

func (p *player) run(ctx context.Context) error {
	fmt.Fprintln(p.out, "Welcome to Adventure Forge. Type /help for commands.")
	p.show(p.eng.State())
	for !p.done {
		fmt.Fprint(p.out, "> ")
		if !p.in.Scan() {
			break
		}
		p.exec(ctx, p.in.Text())
	}
	return p.in.Err()
}

// exec runs one input line.
func (p *player) exec(ctx context.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if !strings.HasPrefix(line, "/") {
		p.apply(p.eng.SubmitTurn(ctx, line))
		return
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(cmd) {
	case "new":
		p.apply(p.eng.QuickStart(ctx, parseSeed(arg)))
	case "create":
		p.create(ctx, arg)
	case "retry":
		p.apply(p.eng.RetryTab(ctx, arg))
		p.showScaffold(p.eng.State())
	case "finalize":
		st := p.eng.State()
		if st.Scaffold == nil {
			p.fail(errors.NewInvalidTransition("finalize", string(st.Phase)))
			return
		}
		p.apply(p.eng.FinalizeCharacter(ctx, defaultChoices(st.Scaffold)))
	case "fate":
		p.apply(p.eng.FateDecides(ctx))
	case "undo":
		p.rewind(p.eng.Undo())
	case "recruit":
		p.apply(p.eng.RecruitCompanion(arg))
	case "save":
		evicted, err := p.eng.Save(ctx)
		if err != nil {
			p.fail(err)
			return
		}
		for _, id := range evicted {
			fmt.Fprintf(p.out, "(oldest save %s was evicted)\n", id)
		}
		p.notice()
	case "saves":
		p.listSaves(ctx)
	case "load":
		p.rewind(p.eng.Load(ctx, arg))
	case "delete":
		if err := p.eng.DeleteSave(ctx, arg); err != nil {
			p.fail(err)
			return
		}
		p.notice()
	case "switch":
		cands, err := p.eng.SwitchPerspective(ctx)
		if err != nil {
			p.fail(err)
			return
		}
		if len(cands) == 0 {
			fmt.Fprintln(p.out, "No other saved characters share this world. Try /successor.")
			return
		}
		for _, c := range cands {
			fmt.Fprintf(p.out, "  %s  %s (%s)\n", c.ID, c.Name, c.Phase)
		}
		fmt.Fprintln(p.out, "Choose with /select <id> or /successor.")
	case "select":
		p.rewind(p.eng.SelectPerspective(ctx, arg))
	case "successor":
		p.apply(p.eng.SwitchToNewCharacter())
	case "continue":
		p.apply(p.eng.ContinueAsNew())
	case "anew":
		p.rewind(p.eng.StartAnew())
	case "reset":
		p.seen = 0
		p.show(p.eng.Reset())
	case "state":
		p.seen = 0
		p.show(p.eng.State())
	case "help":
		fmt.Fprintln(p.out, playHelp)
	case "quit", "exit":
		p.done = true
	default:
		fmt.Fprintf(p.out, "Unknown command /%s. Type /help.\n", cmd)
	}
}

func (p *player) create(ctx context.Context, arg string) {
	st, err := p.eng.BeginCreation(ctx, parseSeed(arg))
	if err != nil {
		p.fail(err)
		return
	}
	fmt.Fprintf(p.out, "Shaping %s of %s...\n", st.Scaffold.Name, st.Scaffold.Theme)
	report, err := p.eng.PrefetchTabs(ctx)
	if err != nil {
		p.fail(err)
		return
	}
	for tab, msg := range report.Failed {
		fmt.Fprintf(p.out, "Tab %s failed (%s). Use /retry %s.\n", tab, msg, tab)
	}
	p.showScaffold(p.eng.State())
}

// listSaves prints the save table. A corrupted collection still prints
// (empty) after its notice.
func (p *player) listSaves(ctx context.Context) {
	slots, err := p.eng.ListSaves(ctx)
	if err != nil && !errors.Is(err, errors.ErrStorageCorrupted) {
		p.fail(err)
		return
	}
	if err != nil {
		p.notice()
	}
	renderSavesTable(p.out, filterByTheme(slots, ""))
}

func (p *player) apply(st session.State, err error) {
	if err != nil {
		p.fail(err)
		return
	}
	p.show(st)
}

// rewind prints after operations that may replace the message log.
func (p *player) rewind(st session.State, err error) {
	if err != nil {
		p.fail(err)
		return
	}
	p.seen = max(len(st.Messages)-3, 0)
	p.show(st)
}

func (p *player) fail(err error) {
	fe := errors.As(err)
	fmt.Fprintf(p.out, "! %s\n", fe.Message)
	if n := p.eng.Notice(); n != "" {
		fmt.Fprintf(p.out, "  %s\n", n)
	}
}

func (p *player) notice() {
	if n := p.eng.Notice(); n != "" {
		fmt.Fprintln(p.out, n)
	}
}

func (p *player) show(st session.State) {
	if p.seen > len(st.Messages) {
		p.seen = 0
	}
	for _, m := range st.Messages[p.seen:] {
		switch m.Speaker {
		case game.SpeakerPlayer:
			fmt.Fprintf(p.out, "you: %s\n", m.Text)
		case game.SpeakerSystem:
			fmt.Fprintf(p.out, "-- %s --\n", m.Text)
		default:
			fmt.Fprintf(p.out, "\n%s\n\n", m.Text)
		}
	}
	p.seen = len(st.Messages)

	if st.Notice != "" {
		fmt.Fprintln(p.out, st.Notice)
	}

	switch st.Phase {
	case game.PhaseCreationStart:
		if st.Continuation != nil {
			fmt.Fprintf(p.out, "The story of %s continues. Name a new hero with /new or /create.\n", st.Continuation.WorldTheme)
		} else {
			fmt.Fprintln(p.out, "Create a character with /new <name> or /create <name>, or /load <id>.")
		}
	case game.PhaseGameOver:
		fmt.Fprintln(p.out, "Your journey has ended. /continue to carry the world on, /anew to start over, /load or /undo.")
	case game.PhaseGameplay, game.PhaseCombat:
		c := st.Character
		fmt.Fprintf(p.out, "[%s] %s %d/%d HP\n", st.Phase, c.Name, c.Health, c.MaxHealth)
		opts := st.Choices
		if st.Phase == game.PhaseCombat {
			opts = st.AttackOptions
		}
		for i, o := range opts {
			fmt.Fprintf(p.out, "  %d. %s\n", i+1, o)
		}
		for _, n := range st.Newcomers {
			fmt.Fprintf(p.out, "  (you met %s; /recruit %s)\n", n.Name, n.Name)
		}
	}
}

func (p *player) showScaffold(st session.State) {
	s := st.Scaffold
	if s == nil {
		return
	}
	for _, tab := range s.Tabs {
		fmt.Fprintf(p.out, "%s:\n", tab.Name)
		for _, a := range tab.Areas {
			opts := strings.Join(a.Options, ", ")
			if opts == "" {
				opts = "(not loaded)"
			}
			fmt.Fprintf(p.out, "  %s: %s\n", a.Name, opts)
		}
	}
	if len(s.Alignments) > 0 {
		fmt.Fprintf(p.out, "Alignments: %s\n", strings.Join(s.Alignments, ", "))
	}
	fmt.Fprintln(p.out, "Type /finalize to begin.")
}

// parseSeed reads "name | world".
func parseSeed(arg string) generation.CharacterSeed {
	name, world, _ := strings.Cut(arg, "|")
	return generation.CharacterSeed{
		Name:  strings.TrimSpace(name),
		World: strings.TrimSpace(world),
	}
}

// defaultChoices picks the first option of every populated area and the
// first offered alignment.
func defaultChoices(s *game.Scaffold) game.FinalizeChoices {
	ch := game.FinalizeChoices{Selections: map[string][]string{}}
	for _, tab := range s.Tabs {
		for _, a := range tab.Areas {
			if len(a.Options) > 0 {
				ch.Selections[a.Name] = []string{a.Options[0]}
			}
		}
	}
	if len(s.Alignments) > 0 {
		ch.Alignment = s.Alignments[0]
	}
	return ch
}
