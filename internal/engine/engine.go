// Package engine runs the companion's turn pipeline: load state, classify
// the message, choose a reply, and commit every record of the turn together.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scrypster/companion/internal/emotion"
	"github.com/scrypster/companion/internal/llm"
	"github.com/scrypster/companion/internal/responder"
	"github.com/scrypster/companion/internal/storage"
	"github.com/scrypster/companion/pkg/types"
)

var (
	// ErrEmptyMessage is returned when a chat message is blank.
	ErrEmptyMessage = errors.New("no message provided")

	// ErrUnknownAction is returned for adventure actions the engine does not know.
	ErrUnknownAction = errors.New("unknown action")
)

// DefaultIntensity is recorded on every emotional pattern; intensity is not measured.
const DefaultIntensity = 0.5

// Config configures an Engine.
type Config struct {
	// Rand drives every random choice. Nil seeds a PCG source from the clock.
	Rand responder.Rand

	// Generator produces free-form replies outside adventure mode. Nil
	// keeps the companion on canned lines.
	Generator llm.Generator

	SuggestionProbability float64
	ThoughtProbability    float64

	// Now returns the current time. Nil uses time.Now.
	Now func() time.Time
}

// DefaultConfig returns the stock probabilities with no generator.
func DefaultConfig() Config {
	return Config{
		SuggestionProbability: responder.DefaultConfig().SuggestionProbability,
		ThoughtProbability:    0.4,
	}
}

// Engine serializes turns against a store. It is safe for concurrent use.
type Engine struct {
	store     storage.Store
	selector  *responder.Selector
	rng       responder.Rand
	generator llm.Generator
	thoughtP  float64
	now       func() time.Time

	// mu serializes state-changing operations and guards rng.
	mu sync.Mutex

	cbMu   sync.RWMutex
	onTurn []func(Event)
}

// New creates an engine over store.
func New(store storage.Store, cfg Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	if cfg.SuggestionProbability < 0 || cfg.SuggestionProbability > 1 ||
		cfg.ThoughtProbability < 0 || cfg.ThoughtProbability > 1 {
		return nil, fmt.Errorf("engine: probabilities must be within [0, 1]")
	}
	rng := cfg.Rand
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	rcfg := responder.DefaultConfig()
	rcfg.SuggestionProbability = cfg.SuggestionProbability

	return &Engine{
		store:     store,
		selector:  responder.New(rng, rcfg),
		rng:       rng,
		generator: cfg.Generator,
		thoughtP:  cfg.ThoughtProbability,
		now:       now,
	}, nil
}

// Store returns the underlying store.
func (e *Engine) Store() storage.Store {
	return e.store
}

// SetOnTurn registers a callback invoked after every committed change.
// Callbacks run synchronously on the request goroutine after the commit.
func (e *Engine) SetOnTurn(callback func(Event)) {
	e.cbMu.Lock()
	defer e.cbMu.Unlock()
	e.onTurn = append(e.onTurn, callback)
}

func (e *Engine) emit(ev Event) {
	e.cbMu.RLock()
	callbacks := append([]func(Event){}, e.onTurn...)
	e.cbMu.RUnlock()
	for _, cb := range callbacks {
		cb(ev)
	}
}

// session is the per-request snapshot of the singletons.
type session struct {
	companion *types.CompanionState
	world     *types.WorldState
}

func (e *Engine) load(ctx context.Context) (*session, error) {
	companion, err := e.store.LoadCompanion(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: load companion: %w", err)
	}
	world, err := e.store.LoadWorld(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: load world: %w", err)
	}
	return &session{companion: companion, world: world}, nil
}

// Chat runs one conversational turn.
func (e *Engine) Chat(ctx context.Context, message string) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	prior := sess.companion.ConversationCount
	detected := emotion.Classify(message)

	out := e.selector.Select(responder.Input{
		Message:           message,
		Emotion:           detected,
		ConversationCount: prior,
		World:             sess.world,
	})
	reply := out.Text
	if e.generator != nil && (out.Branch == responder.BranchEmotional || out.Branch == responder.BranchGeneral) {
		reply = e.generate(ctx, message, detected)
		if out.Suggestion != nil {
			reply = responder.WithSuggestion(reply, *out.Suggestion)
		}
	}

	now := e.now().UTC()
	depth := types.RelationshipDepth(prior + 1)
	world := out.World
	world.LastUpdated = now

	conv := types.Conversation{
		ID:                uuid.NewString(),
		Timestamp:         now,
		UserInput:         message,
		AIResponse:        reply,
		DetectedEmotion:   detected,
		AdventureActive:   world.AdventureActive,
		LocationName:      world.Location.Name,
		RelationshipDepth: depth,
	}
	companion := *sess.companion
	companion.CurrentMood = detected
	companion.LastUpdated = now

	turn := storage.Turn{
		Conversation: conv,
		Pattern: &types.EmotionalPattern{
			ID:             uuid.NewString(),
			Emotion:        detected,
			Intensity:      DefaultIntensity,
			Timestamp:      now,
			ConversationID: conv.ID,
		},
		Companion: &companion,
		World:     world,
	}
	if e.rng.Float64() < e.thoughtP {
		th := e.selector.Thought(detected)
		th.ID = uuid.NewString()
		th.Timestamp = now
		turn.Thought = &th
	}

	if err := e.store.CommitTurn(ctx, turn); err != nil {
		return nil, fmt.Errorf("engine: commit turn: %w", err)
	}

	result := &TurnResult{
		Response:         reply,
		Emotion:          detected,
		CompanionEmotion: companion.CurrentMood,
		Context: TurnContext{
			AdventureActive:   world.AdventureActive,
			Location:          world.Location,
			Inventory:         world.Inventory,
			RelationshipDepth: depth,
		},
		ConversationID: conv.ID,
		Branch:         string(out.Branch),
		Command:        out.Command,
		Roll:           out.Roll,
		Thought:        turn.Thought,
	}
	e.emit(Event{Type: EventTurn, Timestamp: now, Turn: result})
	return result, nil
}

// generate asks the model for a reply and falls back to MentalFog on error.
func (e *Engine) generate(ctx context.Context, message string, detected types.Emotion) string {
	recent, err := e.store.ListConversations(ctx, llm.HistoryLimit)
	if err != nil {
		log.Printf("engine: failed to load history for generation: %v", err)
		recent = nil
	}
	reply, err := e.generator.Reply(ctx, llm.Prompt{
		Message: message,
		Emotion: detected,
		History: llm.HistoryFromConversations(recent),
	})
	if err != nil {
		log.Printf("engine: %s generation failed: %v", e.generator.Model(), err)
		return llm.MentalFog(err)
	}
	return reply
}

// Memory summarizes recent history.
func (e *Engine) Memory(ctx context.Context) (*MemoryView, error) {
	convs, err := e.store.ListConversations(ctx, ConversationWindow)
	if err != nil {
		return nil, fmt.Errorf("engine: list conversations: %w", err)
	}
	patterns, err := e.store.RecentEmotions(ctx, EmotionWindow)
	if err != nil {
		return nil, fmt.Errorf("engine: recent emotions: %w", err)
	}
	count, err := e.store.CountConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: count conversations: %w", err)
	}
	thoughts, err := e.store.ListThoughts(ctx, ThoughtWindow)
	if err != nil {
		return nil, fmt.Errorf("engine: list thoughts: %w", err)
	}
	return buildMemoryView(convs, patterns, thoughts, count, e.now()), nil
}

// Adventure applies an explicit adventure action.
func (e *Engine) Adventure(ctx context.Context, action, dice string) (*AdventureResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch Action(action) {
	case ActionRollDice:
		if dice == "" {
			dice = "1d20"
		}
		roll, err := e.selector.Roll(dice)
		if err != nil {
			log.Printf("engine: dice roll %q rejected: %v", dice, err)
		}
		return &AdventureResult{Action: ActionRollDice, DiceResult: &roll}, nil

	case ActionStart, ActionEnd:
		world, err := e.store.LoadWorld(ctx)
		if err != nil {
			return nil, fmt.Errorf("engine: load world: %w", err)
		}
		msg := "Returning to regular conversation"
		if Action(action) == ActionStart {
			responder.EnterAdventure(world, e.selector.Map().Start())
			msg = "Adventure mode activated!"
		} else {
			responder.LeaveAdventure(world)
		}
		world.LastUpdated = e.now().UTC()
		if err := e.store.SaveWorld(ctx, world); err != nil {
			return nil, fmt.Errorf("engine: save world: %w", err)
		}
		res := &AdventureResult{Action: Action(action), Message: msg, World: world}
		e.emit(Event{Type: EventAdventure, Timestamp: world.LastUpdated, Adventure: res})
		return res, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// Emotion classifies text without touching state.
func (e *Engine) Emotion(text string) (emotion.Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return emotion.Analysis{}, fmt.Errorf("%w: no text provided", storage.ErrInvalidInput)
	}
	return emotion.Analyze(text), nil
}

// World returns the current world state.
func (e *Engine) World(ctx context.Context) (*types.WorldState, error) {
	return e.store.LoadWorld(ctx)
}

// Preferences returns the stored user preferences.
func (e *Engine) Preferences(ctx context.Context) (*types.UserPreferences, error) {
	return e.store.LoadPreferences(ctx)
}

// SavePreferences validates and stores user preferences.
func (e *Engine) SavePreferences(ctx context.Context, prefs *types.UserPreferences) (*types.UserPreferences, error) {
	if prefs == nil {
		return nil, fmt.Errorf("%w: preferences are required", storage.ErrInvalidInput)
	}
	if strings.TrimSpace(prefs.CommunicationStyle) == "" {
		prefs.CommunicationStyle = types.NewUserPreferences().CommunicationStyle
	}
	if prefs.FavoriteTopics == nil {
		prefs.FavoriteTopics = []string{}
	}
	if prefs.ActivityPreferences == nil {
		prefs.ActivityPreferences = []string{}
	}
	prefs.UpdatedAt = e.now().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.SavePreferences(ctx, prefs); err != nil {
		return nil, fmt.Errorf("engine: save preferences: %w", err)
	}
	e.emit(Event{Type: EventPreferences, Timestamp: prefs.UpdatedAt})
	return prefs, nil
}
