package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProgramID identifies one automated desktop application.
type ProgramID string

const (
	ProgramMercury  ProgramID = "mercury"
	ProgramBTCTools ProgramID = "btctools"
)

// KnownPrograms lists every program a worker exists for, in run order.
var KnownPrograms = []ProgramID{ProgramMercury, ProgramBTCTools}

var ErrUnknownProgram = errors.New("unknown program")

// ParseProgramID resolves a configured name to a ProgramID.
func ParseProgramID(name string) (ProgramID, error) {
	id := ProgramID(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range KnownPrograms {
		if id == known {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownProgram, name)
}

// Outcome is the result of automating one program in one cycle.
type Outcome struct {
	Program    ProgramID
	Success    bool
	Launched   bool   // false when no application handle could be obtained
	Detail     string // failure reason, empty on success
	StartedAt  time.Time
	FinishedAt time.Time
}

// FailureSet collects the programs that failed during a cycle.
type FailureSet struct {
	programs []ProgramID
	seen     map[ProgramID]bool
}

func (f *FailureSet) Add(p ProgramID) {
	if f.seen == nil {
		f.seen = make(map[ProgramID]bool)
	}
	if f.seen[p] {
		return
	}
	f.seen[p] = true
	f.programs = append(f.programs, p)
}

func (f *FailureSet) Empty() bool {
	return len(f.programs) == 0
}

func (f *FailureSet) Programs() []ProgramID {
	out := make([]ProgramID, len(f.programs))
	copy(out, f.programs)
	return out
}

// Names returns the failed program names in the order they failed.
func (f *FailureSet) Names() []string {
	out := make([]string, len(f.programs))
	for i, p := range f.programs {
		out[i] = string(p)
	}
	return out
}
