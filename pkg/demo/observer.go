package demo

import (
	"time"

	"github.com/rmax-ai/pganomaly/pkg/catalog"
	"github.com/rmax-ai/pganomaly/pkg/schedule"
	"github.com/rmax-ai/pganomaly/pkg/traffic"
)

// Observer receives progress notifications from the Controller. Calls are
// made synchronously from the controlling goroutine, in order.
type Observer interface {
	TargetStarted(target string)
	TargetSkipped(target string, err error)
	BaselineStarted(target string, d time.Duration)
	RoundStarted(target string, round int)
	ScenarioStarted(target string, round int, s catalog.Scenario)
	ScenarioFinished(target string, e schedule.Execution)
	GeneratorStopped(target string, stats traffic.Stats)
	CleanupFinished(target string, err error)
	TargetFinished(s TargetSummary)
}

// NopObserver ignores every notification. Embed it to implement only the
// callbacks you need.
type NopObserver struct{}

func (NopObserver) TargetStarted(string)                          {}
func (NopObserver) TargetSkipped(string, error)                   {}
func (NopObserver) BaselineStarted(string, time.Duration)         {}
func (NopObserver) RoundStarted(string, int)                      {}
func (NopObserver) ScenarioStarted(string, int, catalog.Scenario) {}
func (NopObserver) ScenarioFinished(string, schedule.Execution)   {}
func (NopObserver) GeneratorStopped(string, traffic.Stats)        {}
func (NopObserver) CleanupFinished(string, error)                 {}
func (NopObserver) TargetFinished(TargetSummary)                  {}

// Observers fans every notification out to each member in order.
type Observers []Observer

func (o Observers) TargetStarted(target string) {
	for _, ob := range o {
		ob.TargetStarted(target)
	}
}

func (o Observers) TargetSkipped(target string, err error) {
	for _, ob := range o {
		ob.TargetSkipped(target, err)
	}
}

func (o Observers) BaselineStarted(target string, d time.Duration) {
	for _, ob := range o {
		ob.BaselineStarted(target, d)
	}
}

func (o Observers) RoundStarted(target string, round int) {
	for _, ob := range o {
		ob.RoundStarted(target, round)
	}
}

func (o Observers) ScenarioStarted(target string, round int, s catalog.Scenario) {
	for _, ob := range o {
		ob.ScenarioStarted(target, round, s)
	}
}

func (o Observers) ScenarioFinished(target string, e schedule.Execution) {
	for _, ob := range o {
		ob.ScenarioFinished(target, e)
	}
}

func (o Observers) GeneratorStopped(target string, stats traffic.Stats) {
	for _, ob := range o {
		ob.GeneratorStopped(target, stats)
	}
}

func (o Observers) CleanupFinished(target string, err error) {
	for _, ob := range o {
		ob.CleanupFinished(target, err)
	}
}

func (o Observers) TargetFinished(s TargetSummary) {
	for _, ob := range o {
		ob.TargetFinished(s)
	}
}
