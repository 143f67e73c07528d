package model

import "time"

// Run is one invocation of classify, evaluate or watch whose verdicts are kept.
type Run struct {
	StartedAt    time.Time
	ID           string
	Command      string
	Model        string
	WindowLength int
	Stride       int
}

// StoredVerdict is a verdict persisted with the context it was produced in.
type StoredVerdict struct {
	CreatedAt      time.Time
	RunID          string
	Recording      string
	ExpectedLabel  string
	Verdict        AggregateVerdict
	SkippedWindows int
}
