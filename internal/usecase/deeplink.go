package usecase

import (
	"regexp"
	"strings"
)

var startCodePattern = regexp.MustCompile(`(?i)/start\s+([a-f0-9-]+)`)

// Inbound is the parsed form of an inbound chat message. It is one of
// StartCommand, UnrecognizedText or Malformed.
type Inbound interface {
	inbound()
}

// StartCommand is a /start command. Code is empty when no deep-link code
// followed the command.
type StartCommand struct {
	Code string
}

// UnrecognizedText is any text that is not a /start command.
type UnrecognizedText struct {
	Text string
}

// Malformed is a message without usable text (stickers, photos, empty).
type Malformed struct{}

func (StartCommand) inbound()     {}
func (UnrecognizedText) inbound() {}
func (Malformed) inbound()        {}

func ParseInbound(text string) Inbound {
	text = strings.TrimSpace(text)
	if text == "" {
		return Malformed{}
	}
	if !strings.HasPrefix(strings.ToLower(text), "/start") {
		return UnrecognizedText{Text: text}
	}

	if m := startCodePattern.FindStringSubmatch(text); m != nil {
		return StartCommand{Code: strings.ToLower(m[1])}
	}
	return StartCommand{}
}
