// Package adventure implements adventure mode: the command parser, the dice
// roller, and the small location graph used for narration.
package adventure

import (
	"regexp"
	"strings"
)

// Kind tags a parsed command.
type Kind string

// Command kinds, in the order the parser tries them.
const (
	KindMovement  Kind = "movement"
	KindExamine   Kind = "examine"
	KindTake      Kind = "take"
	KindUse       Kind = "use"
	KindInventory Kind = "inventory"
	KindDialogue  Kind = "dialogue"
	KindHelp      Kind = "help"
	KindDice      Kind = "dice"
	KindGeneral   Kind = "general"
)

// DefaultDice is rolled when a roll command names no notation.
const DefaultDice = "1d20"

// Directions is the movement vocabulary. Compound directions come before
// their prefixes so "go northeast" is not read as "go north".
var Directions = []string{
	"northeast", "northwest", "southeast", "southwest",
	"north", "south", "east", "west", "up", "down",
}

var (
	inventoryWords = map[string]bool{"inventory": true, "inv": true, "items": true}
	helpWords      = map[string]bool{"help": true, "commands": true}
	embeddedDice   = regexp.MustCompile(`\d+d\d+(?:[+-]\d+)?`)
)

// Command is the tagged result of Parse. Only the fields relevant to Kind are set.
type Command struct {
	Kind      Kind   `json:"type"`
	Direction string `json:"direction,omitempty"`
	Target    string `json:"target,omitempty"`
	Item      string `json:"item,omitempty"`
	NPC       string `json:"npc,omitempty"`
	Notation  string `json:"notation,omitempty"`
	Text      string `json:"text,omitempty"`
}

// Parse maps free text to a command. Rules are tried in a fixed order and the
// first match wins.
func Parse(input string) Command {
	text := strings.ToLower(strings.TrimSpace(input))

	for _, dir := range Directions {
		if text == dir || strings.Contains(text, "go "+dir) || strings.Contains(text, "move "+dir) {
			return Command{Kind: KindMovement, Direction: dir}
		}
	}

	if rest, ok := cutVerb(text, "look at", "look", "examine"); ok {
		return Command{Kind: KindExamine, Target: rest}
	}
	if rest, ok := cutVerb(text, "take", "get"); ok {
		return Command{Kind: KindTake, Item: stripArticle(rest)}
	}
	if rest, ok := cutVerb(text, "use", "cast"); ok {
		return Command{Kind: KindUse, Item: stripArticle(rest)}
	}
	if inventoryWords[text] {
		return Command{Kind: KindInventory}
	}
	if rest, ok := cutVerb(text, "talk to", "speak to"); ok {
		return Command{Kind: KindDialogue, NPC: stripArticle(rest)}
	}
	if helpWords[text] {
		return Command{Kind: KindHelp}
	}
	if strings.Contains(text, "roll") {
		notation := DefaultDice
		if m := embeddedDice.FindString(text); m != "" {
			notation = m
		}
		return Command{Kind: KindDice, Notation: notation}
	}

	return Command{Kind: KindGeneral, Text: input}
}

// cutVerb reports whether text starts with one of verbs as a whole word and
// returns the remainder.
func cutVerb(text string, verbs ...string) (string, bool) {
	for _, verb := range verbs {
		if text == verb {
			return "", true
		}
		if rest, ok := strings.CutPrefix(text, verb+" "); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

func stripArticle(s string) string {
	for _, article := range []string{"the ", "a ", "an "} {
		if rest, ok := strings.CutPrefix(s, article); ok {
			return strings.TrimSpace(rest)
		}
	}
	return s
}
