package example

type OutcomeKind string

const (
	OutcomeImmediate OutcomeKind = "immediate"
	OutcomeDeferred  OutcomeKind = "deferred"
)

type ReplyMode string

const (
	ReplyModeLLM ReplyMode = "llm"
)

// Label has no constants, so it is not an enum.
type Label string

type Outcome struct {
	Kind  OutcomeKind
	Text  string
	Label Label
}

type ReplyConfig struct {
	Mode ReplyMode
}

func bad() {
	o := &Outcome{}
	o.Kind = "late" // want "enum field Kind assigned string literal"

	_ = ReplyConfig{Mode: "magic"} // want "enum field Mode assigned string literal"
}

func good() {
	o := &Outcome{}
	o.Kind = OutcomeDeferred // OK: using constant
	o.Text = "Working on it" // OK: plain string field
	o.Label = "free-form"    // OK: named type without constants

	_ = ReplyConfig{Mode: ReplyModeLLM}
}

func alsoGood() {
	// OK: Variable, not literal
	kind := OutcomeImmediate
	o := &Outcome{Kind: kind}
	_ = o

	// OK: conversion from runtime input
	_ = ReplyConfig{Mode: ReplyMode(envValue())}
}

func envValue() string { return "llm" }
