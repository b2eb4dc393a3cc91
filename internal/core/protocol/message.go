package protocol

import (
	"fmt"

	"github.com/zeusync/reefrush/internal/core/models"
)

// Type names the payload carried by a Message.
type Type string

const (
	TypeWelcome  Type = "welcome"
	TypeSnapshot Type = "snapshot"
	TypeInput    Type = "input"
	TypeHello    Type = "hello"
)

// Message is the envelope exchanged between server and clients. Exactly one
// payload field matching Type is set.
type Message struct {
	Type     Type      `json:"type" msgpack:"type"`
	Welcome  *Welcome  `json:"welcome,omitempty" msgpack:"welcome,omitempty"`
	Snapshot *Snapshot `json:"snapshot,omitempty" msgpack:"snapshot,omitempty"`
	Input    *Input    `json:"input,omitempty" msgpack:"input,omitempty"`
	Hello    *Hello    `json:"hello,omitempty" msgpack:"hello,omitempty"`
}

// Welcome tells a joining client which fish it controls and the field geometry.
type Welcome struct {
	EntityID       models.EntityID `json:"entity_id" msgpack:"entity_id"`
	Width          float64         `json:"width" msgpack:"width"`
	Height         float64         `json:"height" msgpack:"height"`
	TicksPerSecond int             `json:"tps" msgpack:"tps"`
}

// Input is the steering intent of a client's fish.
type Input struct {
	DirX float64 `json:"dx" msgpack:"dx"`
	DirY float64 `json:"dy" msgpack:"dy"`
}

// Hello is the first message a client sends after connecting.
type Hello struct {
	Name    string `json:"name" msgpack:"name"`
	Session string `json:"session" msgpack:"session"`
}

func NewWelcome(w Welcome) Message {
	return Message{Type: TypeWelcome, Welcome: &w}
}

func NewSnapshotMessage(s Snapshot) Message {
	return Message{Type: TypeSnapshot, Snapshot: &s}
}

func NewInput(dx, dy float64) Message {
	return Message{Type: TypeInput, Input: &Input{DirX: dx, DirY: dy}}
}

func NewHello(name, session string) Message {
	return Message{Type: TypeHello, Hello: &Hello{Name: name, Session: session}}
}

// Validate checks that the payload matching Type is present.
func (m Message) Validate() error {
	var present bool
	switch m.Type {
	case TypeWelcome:
		present = m.Welcome != nil
	case TypeSnapshot:
		present = m.Snapshot != nil
	case TypeInput:
		present = m.Input != nil
	case TypeHello:
		present = m.Hello != nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, m.Type)
	}
	if !present {
		return fmt.Errorf("%w: %s without payload", ErrInvalidMessage, m.Type)
	}
	return nil
}
