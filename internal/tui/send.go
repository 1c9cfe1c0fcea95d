package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"filehasher/internal/engine"
	"filehasher/internal/report"
)

// Sender adapts engine callbacks to program messages. *tea.Program's Send
// method is the usual implementation.
type Sender func(tea.Msg)

// Samples returns an OnProgress callback for file.
func (s Sender) Samples(file string) func(engine.Sample) {
	return func(smp engine.Sample) { s(SampleMsg{File: file, Sample: smp}) }
}

// Aggregates returns an OnAggregate callback for file.
func (s Sender) Aggregates(file string) func(engine.Aggregate) {
	return func(a engine.Aggregate) { s(AggregateMsg{File: file, Aggregate: a}) }
}

func (s Sender) Done(file string, res *report.HashResult, err error) {
	s(FileDoneMsg{File: file, Result: res, Err: err})
}

func (s Sender) Finish() { s(AllDoneMsg{}) }
