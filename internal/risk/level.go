package risk

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Level is the categorical severity of a clause or contract.
type Level string

const (
	Low      Level = "low"
	Medium   Level = "medium"
	High     Level = "high"
	Unscored Level = "unscored"
)

var levels = []Level{Low, Medium, High, Unscored}

// Levels returns every level in ascending severity, ending with Unscored.
func Levels() []Level {
	return slices.Clone(levels)
}

// ParseLevel validates s against the closed set of levels.
func ParseLevel(s string) (Level, error) {
	l := Level(s)
	if !slices.Contains(levels, l) {
		return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
	}
	return l, nil
}

// Eligible reports whether a clause at this level may receive amendments.
func (l Level) Eligible() bool {
	return l == Medium || l == High
}

func (l *Level) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ContractLevel folds clause levels into the contract's categorical level:
// high if any clause is high, else medium if any is medium, else low if any
// clause was assessed, else unscored.
func ContractLevel(clauses []Level) Level {
	result := Unscored
	for _, l := range clauses {
		switch l {
		case High:
			return High
		case Medium:
			result = Medium
		case Low:
			if result == Unscored {
				result = Low
			}
		}
	}
	return result
}

// Summary is the derived risk of a contract over its clauses.
// Min, Avg and Max are nil when no clause has been assessed.
type Summary struct {
	Level    Level    `json:"level"`
	Min      *float64 `json:"min"`
	Avg      *float64 `json:"avg"`
	Max      *float64 `json:"max"`
	Assessed int      `json:"assessed"`
	Unscored int      `json:"unscored"`
}

// Scored is one clause's level and optional score, as read from storage.
type Scored struct {
	Level Level
	Score *float64
}

// Summarize derives the contract summary from its clauses.
func Summarize(clauses []Scored) Summary {
	s := Summary{Level: Unscored}

	levels := make([]Level, 0, len(clauses))
	var sum float64
	for _, c := range clauses {
		levels = append(levels, c.Level)
		if c.Level == Unscored || c.Score == nil {
			s.Unscored++
			continue
		}

		v := *c.Score
		if s.Assessed == 0 {
			lo, hi := v, v
			s.Min, s.Max = &lo, &hi
		} else {
			*s.Min = min(*s.Min, v)
			*s.Max = max(*s.Max, v)
		}
		sum += v
		s.Assessed++
	}

	if s.Assessed > 0 {
		avg := round2(sum / float64(s.Assessed))
		s.Avg = &avg
	}
	s.Level = ContractLevel(levels)
	return s
}
