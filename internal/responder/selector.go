// Package responder picks the companion's reply: a cascade of canned lists
// narrowed by adventure state, emotion, and relationship depth, each sampled
// uniformly from an injected random source.
package responder

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/companion/internal/adventure"
	"github.com/scrypster/companion/pkg/types"
)

// Rand is the random source the selector samples from. *rand.Rand from
// math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// Branch names the cascade step that produced a reply.
type Branch string

const (
	BranchAdventureStart Branch = "adventure_start"
	BranchAdventure      Branch = "adventure"
	BranchEmotional      Branch = "emotional"
	BranchGeneral        Branch = "general"
)

// deepRelationship is the depth above which the deeper generic lines unlock.
const deepRelationship = 5

// Config tunes the selector's side effects.
type Config struct {
	// SuggestionProbability is the chance an activity suggestion is appended.
	SuggestionProbability float64
	// MinConversations is how many prior turns must exist before suggesting.
	MinConversations int
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		SuggestionProbability: 0.3,
		MinConversations:      2,
	}
}

// Selector chooses replies. It is not safe for concurrent use; callers
// serialize access along with the random source.
type Selector struct {
	rng   Rand
	world *adventure.Map
	cfg   Config
}

// New creates a Selector over the default adventure map.
func New(rng Rand, cfg Config) *Selector {
	return &Selector{rng: rng, world: adventure.DefaultMap(), cfg: cfg}
}

// Map returns the adventure map the selector narrates.
func (s *Selector) Map() *adventure.Map {
	return s.world
}

// Input is everything the selector looks at.
type Input struct {
	Message           string
	Emotion           types.Emotion
	ConversationCount int // turns recorded before this one
	World             *types.WorldState
}

// Output is the chosen reply plus any world changes it implies.
type Output struct {
	Text       string
	Branch     Branch
	World      *types.WorldState // staged copy; commit it with the turn
	Command    *adventure.Command
	Roll       *adventure.Roll
	Suggestion *Activity
}

// Select runs the cascade for one turn.
func (s *Selector) Select(in Input) Output {
	world := in.World.Clone()
	if world == nil {
		world = types.NewWorldState()
	}
	out := Output{World: world}

	ctx := adventure.DetectContext(in.Message, world)
	switch {
	case !ctx.CurrentlyInAdventure && ctx.SuggestsAdventure:
		room := s.world.Start()
		EnterAdventure(world, room)
		out.Branch = BranchAdventureStart
		out.Text = fmt.Sprintf("%s %s: %s", s.pick(adventureStartLines), room.Name, room.Description)

	case ctx.CurrentlyInAdventure:
		cmd := adventure.Parse(in.Message)
		out.Command = &cmd
		out.Branch = BranchAdventure
		out.Text = s.adventureLine(cmd, world, &out)

	case in.Emotion != types.EmotionNeutral && len(emotionalLines[in.Emotion]) > 0:
		out.Branch = BranchEmotional
		out.Text = s.pick(emotionalLines[in.Emotion])

	default:
		out.Branch = BranchGeneral
		out.Text = s.Generic(types.RelationshipDepth(in.ConversationCount))
	}

	if s.rng.Float64() < s.cfg.SuggestionProbability && in.ConversationCount > s.cfg.MinConversations {
		a := s.Suggest()
		out.Suggestion = &a
		out.Text = WithSuggestion(out.Text, a)
	}
	return out
}

// Generic picks from the depth-tiered generic pool.
func (s *Selector) Generic(depth int) string {
	pool := conversationLines
	if depth > deepRelationship {
		pool = append(append([]string{}, conversationLines...), deeperLines...)
	}
	return s.pick(pool)
}

// WithSuggestion appends an activity suggestion to text.
func WithSuggestion(text string, a Activity) string {
	return text + "\n\nBy the way, " + a.Suggestion
}

// Suggest picks an activity.
func (s *Selector) Suggest() Activity {
	return activities[s.rng.IntN(len(activities))]
}

// Roll rolls notation with the selector's random source.
func (s *Selector) Roll(notation string) (adventure.Roll, error) {
	return adventure.RollDice(s.rng, notation)
}

// Thought produces a templated companion thought.
func (s *Selector) Thought(mood types.Emotion) types.CompanionThought {
	w := thoughtWords
	r := strings.NewReplacer(
		"{topic}", s.pick(w.topics),
		"{reflection}", s.pick(w.concepts),
		"{observation}", s.pick(w.observations),
		"{memory}", s.pick(w.topics),
		"{question}", s.pick(w.questions),
		"{concept}", s.pick(w.concepts),
		"{skill}", s.pick(w.skills),
		"{improvement}", s.pick(w.concepts),
		"{emotion}", s.pick(w.emotions),
		"{experience}", s.pick(w.experiences),
	)
	return types.CompanionThought{
		Timestamp:        time.Now().UTC(),
		Text:             r.Replace(s.pick(thoughtTemplates)),
		Type:             "reflection",
		EmotionalContext: mood,
	}
}

// EnterAdventure switches world into adventure mode at room.
func EnterAdventure(world *types.WorldState, room adventure.Room) {
	world.AdventureActive = true
	world.CurrentScene = types.SceneAdventure
	world.Location = room.Location()
}

// LeaveAdventure returns world to the real world.
func LeaveAdventure(world *types.WorldState) {
	world.AdventureActive = false
	world.CurrentScene = types.SceneRealWorld
	world.Location = types.HomeLocation()
}

func (s *Selector) adventureLine(cmd adventure.Command, world *types.WorldState, out *Output) string {
	room := s.world.Current(world)

	switch cmd.Kind {
	case adventure.KindMovement:
		to, err := s.world.Move(room.ID, cmd.Direction)
		var noExit *adventure.NoExitError
		if errors.As(err, &noExit) {
			return fmt.Sprintf("You can't go %s from here. Exits lead %s.", cmd.Direction, strings.Join(noExit.Exits, ", "))
		}
		if err != nil {
			return "The way seems to shift and blur. Let's try another path."
		}
		world.Location = to.Location()
		return fmt.Sprintf(s.pick(movementLines), cmd.Direction) + " " + to.Name + ": " + to.Description

	case adventure.KindExamine:
		return describe(room, world.Inventory)

	case adventure.KindTake:
		switch {
		case cmd.Item == "":
			return "Take what? Tell me what you'd like to pick up."
		case world.HasItem(cmd.Item):
			return fmt.Sprintf("You're already carrying the %s.", cmd.Item)
		case contains(room.ItemsLeft(world.Inventory), cmd.Item):
			world.Inventory = append(world.Inventory, cmd.Item)
			return fmt.Sprintf("You pick up the %s. It might come in handy.", cmd.Item)
		default:
			return fmt.Sprintf("I don't see a %s here.", cmd.Item)
		}

	case adventure.KindUse:
		switch {
		case cmd.Item == "":
			return "Use what? Check your inventory to see what you're carrying."
		case world.HasItem(cmd.Item):
			return fmt.Sprintf(s.pick(useLines), cmd.Item)
		default:
			return fmt.Sprintf("You reach for the %s, but it isn't in your pack. Maybe it's somewhere nearby?", cmd.Item)
		}

	case adventure.KindInventory:
		if len(world.Inventory) == 0 {
			return "Your pockets are empty, but your spirit is full of potential!"
		}
		return fmt.Sprintf("You're carrying: %s. Quite a collection!", strings.Join(world.Inventory, ", "))

	case adventure.KindDialogue:
		if room.HasCharacter(cmd.NPC) {
			return fmt.Sprintf(s.pick(dialogueLines), cmd.NPC)
		}
		return fmt.Sprintf("There's no one called %q here. Maybe we'll meet them further along.", cmd.NPC)

	case adventure.KindHelp:
		return helpText

	case adventure.KindDice:
		roll, err := s.Roll(cmd.Notation)
		out.Roll = &roll
		if err != nil {
			return "The dice seem reluctant to roll. Try a different approach?"
		}
		return fmt.Sprintf("🎲 %s - The dice have spoken!", roll.Description)

	default:
		return s.pick(adventureGeneralLines)
	}
}

func describe(room adventure.Room, inventory []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", room.Name, room.Description)
	if items := room.ItemsLeft(inventory); len(items) > 0 {
		fmt.Fprintf(&b, " You notice: %s.", strings.Join(items, ", "))
	}
	if len(room.Characters) > 0 {
		fmt.Fprintf(&b, " Nearby: %s.", strings.Join(room.Characters, ", "))
	}
	fmt.Fprintf(&b, " Exits: %s.", strings.Join(room.ExitNames(), ", "))
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (s *Selector) pick(list []string) string {
	return list[s.rng.IntN(len(list))]
}
