package state

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome is the recorded result of one scenario. It is never modified once appended to a run log.
type Outcome struct {
	Name    string
	Elapsed time.Duration
	Status  Status
	Err     string `yaml:",omitempty"`
}

func NewOutcome(name string, elapsed time.Duration, err error) Outcome {
	o := Outcome{
		Name:    name,
		Elapsed: elapsed,
		Status:  StatusSuccess,
	}
	if err != nil {
		o.Status = StatusFailure
		o.Err = err.Error()
	}
	return o
}

func (o Outcome) Ok() bool {
	return o.Status == StatusSuccess
}

func (o Outcome) String() string {
	s := fmt.Sprintf("%s: %s in %s", o.Name, o.Status, o.Elapsed.Round(time.Second))
	if o.Err != "" {
		s += " (" + o.Err + ")"
	}
	return s
}
