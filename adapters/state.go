package adapters

import (
	"encoding/json"
	"fmt"
	"time"
)

type StateKind string

const (
	KindSynced                StateKind = "synced"
	KindSyncing               StateKind = "syncing"
	KindSearchingTransactions StateKind = "searching_transactions"
	KindNotSynced             StateKind = "not_synced"
)

// State is the synchronization state of an adapter.
type State struct {
	Kind StateKind

	// Syncing
	Progress      *int
	LastBlockDate *time.Time

	// SearchingTransactions
	Count int

	// NotSynced
	Err error
}

func Synced() State {
	return State{Kind: KindSynced}
}

// Syncing takes an optional progress in percent, clamped to 0-100, and an
// optional timestamp of the last synced block.
func Syncing(progress *int, lastBlockDate *time.Time) State {
	if progress != nil {
		p := *progress
		if p < 0 {
			p = 0
		} else if p > 100 {
			p = 100
		}
		progress = &p
	}
	return State{Kind: KindSyncing, Progress: progress, LastBlockDate: lastBlockDate}
}

func SearchingTransactions(count int) State {
	return State{Kind: KindSearchingTransactions, Count: count}
}

func NotSynced(err error) State {
	return State{Kind: KindNotSynced, Err: err}
}

func (s State) IsSynced() bool {
	return s.Kind == KindSynced
}

func (s State) String() string {
	switch s.Kind {
	case KindSyncing:
		if s.Progress != nil {
			return fmt.Sprintf("syncing(%d%%)", *s.Progress)
		}
		return "syncing"
	case KindSearchingTransactions:
		return fmt.Sprintf("searching_transactions(%d)", s.Count)
	case KindNotSynced:
		if s.Err != nil {
			return fmt.Sprintf("not_synced(%s)", s.Err)
		}
		return "not_synced"
	}
	return string(s.Kind)
}

// Equal compares kinds, payloads and error messages.
func (s State) Equal(o State) bool {
	if s.Kind != o.Kind || s.Count != o.Count {
		return false
	}
	if (s.Progress == nil) != (o.Progress == nil) || (s.Progress != nil && *s.Progress != *o.Progress) {
		return false
	}
	if (s.LastBlockDate == nil) != (o.LastBlockDate == nil) || (s.LastBlockDate != nil && !s.LastBlockDate.Equal(*o.LastBlockDate)) {
		return false
	}
	if (s.Err == nil) != (o.Err == nil) || (s.Err != nil && s.Err.Error() != o.Err.Error()) {
		return false
	}
	return true
}

type stateJSON struct {
	Kind          StateKind  `json:"kind"`
	Progress      *int       `json:"progress,omitempty"`
	LastBlockDate *time.Time `json:"lastBlockDate,omitempty"`
	Count         *int       `json:"count,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func (s State) MarshalJSON() ([]byte, error) {
	j := stateJSON{Kind: s.Kind, Progress: s.Progress, LastBlockDate: s.LastBlockDate}
	if s.Kind == KindSearchingTransactions {
		count := s.Count
		j.Count = &count
	}
	if s.Err != nil {
		j.Error = s.Err.Error()
	}
	return json.Marshal(j)
}
