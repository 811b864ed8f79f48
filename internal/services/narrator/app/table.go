package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/creation"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/dice"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/orchestrator"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/state"
	"github.com/Jordannewman90/Roleplay-Foreplay/internal/services/narrator/tools"
)

const (
	recapPrompt   = "Recap please."
	guidePrompt   = "I'm stuck, what should I do?"
	catchupLines  = 4
	commandPrefix = "!"
)

var oocPrefixes = []string{"//", ">>"}

var startPhrases = []string{"start game", "begin adventure"}

// Narrator runs turns and one-off generations for the table.
type Narrator interface {
	ProcessUtterance(ctx context.Context, turn orchestrator.Turn) (orchestrator.Reply, error)
	RollDice(expr string) (dice.Result, error)
	GeneratePremise(ctx context.Context) (orchestrator.Premise, error)
	DescribeScene(ctx context.Context) (string, error)
	Status() orchestrator.Status
}

// Voice turns narration into a WAV clip.
type Voice interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// Backups uploads the campaign on demand.
type Backups interface {
	RunOnce(ctx context.Context) (string, error)
}

// Table is everything a chat room needs to run the game. Voice and Backups
// are optional.
type Table struct {
	Narrator Narrator
	Store    *state.Store
	Tools    *tools.Registry
	Creation *creation.Sessions
	Voice    Voice
	Backups  Backups
	Now      func() time.Time
}

type participant struct {
	playerID string
	name     string
}

// table dispatches chat messages to commands, creation and narration. Each
// message runs on its own goroutine so slow model calls never block a
// connection's read loop.
type table struct {
	Table
	turns sync.WaitGroup
}

func newTable(deps Table) (*table, error) {
	if deps.Narrator == nil {
		return nil, errors.New("narrator is required")
	}
	if deps.Store == nil {
		return nil, errors.New("state store is required")
	}
	if deps.Tools == nil {
		return nil, errors.New("tool registry is required")
	}
	if deps.Creation == nil {
		return nil, errors.New("creation sessions are required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &table{Table: deps}, nil
}

// dispatch handles body asynchronously.
func (t *table) dispatch(out *delivery, who participant, body string) {
	t.turns.Add(1)
	go func() {
		defer t.turns.Done()
		t.handle(context.Background(), out, who, body)
	}()
}

// wait blocks until every dispatched message has been handled.
func (t *table) wait() {
	t.turns.Wait()
}

func (t *table) handle(ctx context.Context, out *delivery, who participant, body string) {
	body = strings.TrimSpace(body)
	if body == "" || isOOC(body) {
		return
	}
	isCommand := strings.HasPrefix(body, commandPrefix)

	if !isCommand && t.Creation.Active(who.playerID) {
		t.answerCreation(ctx, out, who, body)
		return
	}
	if isStartPhrase(body) {
		t.start(ctx, out, "")
		return
	}
	if isCommand {
		t.command(ctx, out, who, body)
		return
	}
	if !t.Store.Exists(who.playerID) {
		return
	}
	t.narrate(ctx, out, who.playerID, who.name, body, "")
}

func (t *table) command(ctx context.Context, out *delivery, who participant, body string) {
	name, arg := splitCommand(body)
	switch name {
	case "roll":
		t.roll(out, who, arg)
	case "sheet":
		t.sheet(out, who)
	case "rest":
		t.rest(ctx, out, who)
	case "fight":
		t.fight(ctx, out, who, arg)
	case "start":
		t.start(ctx, out, arg)
	case "create":
		t.beginCreation(out, who)
	case "recap":
		t.systemTurn(ctx, out, "Story so far:", recapPrompt)
	case "guide":
		t.systemTurn(ctx, out, "DM's guide:", guidePrompt)
	case "status":
		t.status(out)
	case "catchup":
		t.catchup(out)
	case "fix":
		t.fix(ctx, out)
	case "backup":
		t.backup(ctx, out)
	case "speak":
		t.speak(ctx, out)
	case "snapshot":
		t.snapshot(ctx, out, who)
	default:
		// Unknown commands are ignored.
	}
}

// narrate runs one turn and posts the reply, or the failure text, to the room.
// A non-empty heading is prepended to a successful reply.
func (t *table) narrate(ctx context.Context, out *delivery, playerID, speaker, text, heading string) {
	reply, err := t.Narrator.ProcessUtterance(ctx, orchestrator.Turn{
		PlayerID: playerID,
		Speaker:  speaker,
		Text:     text,
		Sink:     out,
	})
	if err != nil {
		log.Printf("chat: narration failed player=%q: %v", playerID, err)
		out.narrate(reply.Text)
		return
	}
	if heading != "" {
		out.narrate(heading + "\n" + reply.Text)
		return
	}
	out.narrate(reply.Text)
}

func (t *table) roll(out *delivery, who participant, expr string) {
	if strings.TrimSpace(expr) == "" {
		out.system("Usage: !roll 1d20+5")
		return
	}
	result, err := t.Narrator.RollDice(expr)
	if err != nil {
		out.system(fmt.Sprintf("Invalid dice: %v", err))
		return
	}
	out.system(fmt.Sprintf("%s rolled %s: %s = **%d**", who.name, result.Expression, result.Detail, result.Total))
}

func (t *table) sheet(out *delivery, who participant) {
	c, ok := t.Store.Get(who.playerID)
	if !ok {
		out.system("You have no character yet. Type !create.")
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s %s), level %d\n", c.Name, c.Race, c.Class, c.Level)
	fmt.Fprintf(&b, "HP: %d/%d | XP: %d/%d | Gold: %d\n", c.HPCurrent, c.HPMax, c.XP, c.LevelUpThreshold(), c.GoldBalance())
	if len(c.Stats) > 0 {
		fmt.Fprintf(&b, "Stats: %v\n", c.Stats)
	}
	if len(c.Inventory) > 0 {
		fmt.Fprintf(&b, "Inventory: %s\n", strings.Join(c.Inventory, ", "))
	}
	for _, quest := range c.Quests {
		fmt.Fprintf(&b, "Quest: %s (%s)\n", quest.Name, quest.Status)
	}
	out.system(b.String())
}

func (t *table) rest(ctx context.Context, out *delivery, who participant) {
	if !t.Store.Exists(who.playerID) {
		out.system("You have no character yet. Type !create.")
		return
	}
	result, err := t.Tools.Execute(ctx, tools.NameTakeLongRest, tools.Call{PlayerID: who.playerID})
	if err != nil {
		log.Printf("chat: rest failed player=%q: %v", who.playerID, err)
		out.system("Something went wrong while resting. Try again.")
		return
	}
	out.system(fmt.Sprintf("%s takes a long rest. HP restored to %v/%v.", who.name, result["hp_current"], result["hp_max"]))
}

func (t *table) fight(ctx context.Context, out *delivery, who participant, monster string) {
	if strings.TrimSpace(monster) == "" {
		out.system("Usage: !fight goblin")
		return
	}
	result, err := t.Tools.Execute(ctx, tools.NameStartCombat, tools.Call{
		PlayerID: who.playerID,
		Args:     map[string]any{"monster_name": monster},
	})
	if err != nil {
		log.Printf("chat: fight failed player=%q: %v", who.playerID, err)
		out.system("Something went wrong starting the fight. Try again.")
		return
	}
	if _, failed := result["error"]; failed {
		out.system(fmt.Sprintf("Unknown monster. Try: %v", result["valid_monsters"]))
		return
	}
	monsterInit, _ := result["monster_initiative"].(int)
	playerInit, _ := result["player_initiative"].(int)
	first := "You go first!"
	if monsterInit > playerInit {
		first = "Monster goes first!"
	}
	out.system(fmt.Sprintf("**%v** (HP: %v) appears!\nMonster Init: %d | Your Init: %d\n**%s**",
		result["monster"], result["hp"], monsterInit, playerInit, first))
}

func (t *table) start(ctx context.Context, out *delivery, premise string) {
	premise = strings.TrimSpace(premise)
	title := ""
	if premise == "" {
		generated, err := t.Narrator.GeneratePremise(ctx)
		if err != nil {
			log.Printf("chat: premise generation failed: %v", err)
			out.narrate(orchestrator.FailureReply)
			return
		}
		title, premise = generated.Title, generated.Text
	}
	if err := t.Store.SetPremise(ctx, premise); err != nil {
		log.Printf("chat: save premise: %v", err)
		out.narrate(orchestrator.FailureReply)
		return
	}

	heading := "The adventure begins..."
	if title != "" {
		heading = fmt.Sprintf("The adventure begins: %s", title)
	}
	out.system(fmt.Sprintf("**%s**\n\nPremise: %s", heading, premise))
	t.narrate(ctx, out, "", orchestrator.SystemSpeaker, "Start the campaign with premise: "+premise, "")
}

func (t *table) systemTurn(ctx context.Context, out *delivery, heading, prompt string) {
	t.narrate(ctx, out, "", orchestrator.SystemSpeaker, prompt, "**"+heading+"**")
}

func (t *table) beginCreation(out *delivery, who participant) {
	prompt, err := t.Creation.Begin(who.playerID, who.name)
	if err != nil {
		if errors.Is(err, state.ErrPlayerExists) {
			out.system("You already have a character! Type !sheet.")
			return
		}
		log.Printf("chat: begin creation player=%q: %v", who.playerID, err)
		out.system("Could not start character creation.")
		return
	}
	out.system(formatPrompt(prompt))
}

func (t *table) answerCreation(ctx context.Context, out *delivery, who participant, body string) {
	prompt, err := t.Creation.Answer(ctx, who.playerID, body)
	if err != nil {
		log.Printf("chat: creation answer player=%q: %v", who.playerID, err)
		out.system("Could not save your character. Try again.")
		return
	}
	out.system(formatPrompt(prompt))
}

func (t *table) status(out *delivery) {
	status := t.Narrator.Status()
	out.system(fmt.Sprintf("**DM Status**\nUptime: %s\nCurrent thought: %s", status.Uptime.Truncate(time.Second), status.LastThought))
}

func (t *table) catchup(out *delivery) {
	recent := t.Store.Recent(catchupLines)
	if len(recent) == 0 {
		out.system("No story history yet!")
		return
	}
	out.system(fmt.Sprintf("**Last %d lines:**\n\n%s", len(recent), strings.Join(recent, "\n\n")))
}

func (t *table) fix(ctx context.Context, out *delivery) {
	if err := t.Store.ClearTranscript(ctx); err != nil {
		log.Printf("chat: clear transcript: %v", err)
		out.system("Could not clear memory. Try again.")
		return
	}
	out.system("**Memory cleaned.** Character sheets are kept, but the story context is reset.")
}

func (t *table) backup(ctx context.Context, out *delivery) {
	if t.Backups == nil {
		out.system("Backups are not configured.")
		return
	}
	out.system("Uploading...")
	summary, err := t.Backups.RunOnce(ctx)
	if summary == "" && err != nil {
		summary = fmt.Sprintf("Backup failed: %v", err)
	}
	out.system(summary)
}

func (t *table) speak(ctx context.Context, out *delivery) {
	if t.Voice == nil {
		out.system("Voice is not configured.")
		return
	}
	line := lastNarration(t.Store.Recent(state.ContextWindow))
	if line == "" {
		out.system("The DM has not said anything yet.")
		return
	}
	wav, err := t.Voice.Speak(ctx, line)
	if err != nil {
		log.Printf("chat: speech failed: %v", err)
		out.system("The DM has lost their voice. Try again later.")
		return
	}
	if err := out.deliverAudio(wav, "The DM speaks"); err != nil {
		log.Printf("chat: deliver audio: %v", err)
	}
}

func (t *table) snapshot(ctx context.Context, out *delivery, who participant) {
	description, err := t.Narrator.DescribeScene(ctx)
	if err != nil {
		log.Printf("chat: describe scene: %v", err)
		out.system(fmt.Sprintf("Snapshot error: %v", err))
		return
	}
	out.system(fmt.Sprintf("Painting the scene: _%s_", truncateRunes(description, 150)))

	result, err := t.Tools.Execute(tools.WithMediaSink(ctx, out), tools.NameIllustrateScene, tools.Call{
		PlayerID: who.playerID,
		Args:     map[string]any{"prompt": description, "style": "fantasy oil painting"},
	})
	if err != nil {
		log.Printf("chat: snapshot failed: %v", err)
		out.system("The painter dropped their brush. Try again later.")
		return
	}
	switch result["status"] {
	case "success":
	case "skipped":
		out.system(fmt.Sprintf("The painter is resting (%v).", result["reason"]))
	default:
		out.system(fmt.Sprintf("The painting failed: %v", result["error"]))
	}
}

func formatPrompt(prompt creation.Prompt) string {
	if len(prompt.Options) == 0 {
		return prompt.Message
	}
	return fmt.Sprintf("%s\nOptions: %s", prompt.Message, strings.Join(prompt.Options, ", "))
}

func lastNarration(lines []string) string {
	prefix := orchestrator.NarratorSpeaker + ": "
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(lines[i], prefix) {
			return strings.TrimPrefix(lines[i], prefix)
		}
	}
	return ""
}

func splitCommand(body string) (string, string) {
	body = strings.TrimPrefix(strings.TrimSpace(body), commandPrefix)
	name, arg, _ := strings.Cut(body, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}

func isOOC(body string) bool {
	for _, prefix := range oocPrefixes {
		if strings.HasPrefix(body, prefix) {
			return true
		}
	}
	return false
}

func isStartPhrase(body string) bool {
	lower := strings.ToLower(body)
	for _, phrase := range startPhrases {
		if strings.HasPrefix(lower, phrase) {
			return true
		}
	}
	return false
}
