package event

import (
	"time"
)

// Event interface identify types that can be sent to a pipeline observer.
// Events are used to notify the caller of the progress of a run.
//
// The caller will typically use a switch statement to handle the event type.
// For example:
//
//	observer := func(e event.Event) {
//		switch ev := e.(type) {
//		case *event.StageStartedEvent:
//			fmt.Println("running", ev.Stage)
//		case *event.StageCompletedEvent:
//			fmt.Println(ev.Output)
//		case *event.RunBlockedEvent:
//			fmt.Println("blocked:", ev.Reason)
//		case *event.RunFailedEvent:
//			fmt.Println(ev.Err)
//		}
//	}
type Event interface {
	ID() string
}

type RunStartedEvent struct {
	RunID     string
	CaseID    string
	Requester string
	Task      string
	Documents int
	At        time.Time
}

func (e *RunStartedEvent) ID() string { return e.RunID }

type StageStartedEvent struct {
	RunID string
	Stage string
	Role  string
	Input string
	At    time.Time
}

func (e *StageStartedEvent) ID() string { return e.RunID }

type StageCompletedEvent struct {
	RunID    string
	Stage    string
	Output   string
	Duration time.Duration
}

func (e *StageCompletedEvent) ID() string { return e.RunID }

type RunBlockedEvent struct {
	RunID     string
	Requester string
	Phrase    string
	Reason    string
}

func (e *RunBlockedEvent) ID() string { return e.RunID }

type RunFailedEvent struct {
	RunID string
	Stage string
	Err   error
}

func (e *RunFailedEvent) ID() string { return e.RunID }

type RunCompletedEvent struct {
	RunID    string
	CaseID   string
	Duration time.Duration
}

func (e *RunCompletedEvent) ID() string { return e.RunID }
