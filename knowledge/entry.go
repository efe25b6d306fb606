package knowledge

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Outcome of a node for the side that played the last move of its key.
type Outcome int

const (
	Lose Outcome = iota
	Win
)

func (o Outcome) String() string {
	if o == Win {
		return "win"
	}
	return "lose"
}

// Flip gives the outcome for the other side.
func (o Outcome) Flip() Outcome {
	return 1 - o
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "win":
		*o = Win
	case "lose", "loss":
		*o = Lose
	default:
		return fmt.Errorf("unknown outcome %q", b)
	}
	return nil
}

// Timestamp reads both RFC 3339 times and zone-less ISO times as written
// by older knowledge files.
type Timestamp struct {
	time.Time
}

const isoNoZone = "2006-01-02T15:04:05.999999999"

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if tm, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = tm
		return nil
	}
	tm, err := time.ParseInLocation(isoNoZone, s, time.Local)
	if err != nil {
		return err
	}
	t.Time = tm
	return nil
}

// Entry is what the store knows about one sequence key.
type Entry struct {
	Outcome       Outcome   `json:"outcome"`
	Confidence    float64   `json:"confidence"`
	Depth         int       `json:"depth"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	VerifiedCount int       `json:"verified_count"`
	IsTerminal    bool      `json:"is_terminal"`
	Created       Timestamp `json:"created"`
	LastUpdated   Timestamp `json:"last_updated"`
	Note          string    `json:"note,omitempty"`
}

const (
	// MaxNewConfidence caps the confidence of a first, non-terminal
	// observation. Only proofs reach 1.0.
	MaxNewConfidence = 0.98

	// Saturation thresholds.
	SaturatedConfidence = 0.95
	SaturatedVerified   = 30

	// CertainConfidence is the level at which a node stops being
	// "uncertain" for enrichment.
	CertainConfidence = 0.99
)

// Confidence scores a non-terminal entry from its observation counts and
// the deepest search that produced one of them.
func Confidence(wins, losses, verified, depth int) float64 {
	total := wins + losses
	winRate := 0.5
	if total > 0 {
		winRate = float64(wins) / float64(total)
	}
	unanimous := total > 0 && (wins == 0 || losses == 0)
	switch {
	case unanimous && depth >= 15:
		return 0.98
	case unanimous && depth >= 10:
		return 0.95
	}
	fromRate := math.Abs(winRate-0.5) * 2
	bonus := math.Min(0.20, float64(verified)*0.01)
	return math.Min(0.90, fromRate+bonus)
}

// Saturated reports whether e has been sampled enough to deprioritize.
func (e Entry) Saturated() bool {
	return e.Confidence >= SaturatedConfidence && e.VerifiedCount >= SaturatedVerified
}

func (e Entry) String() string {
	if e.IsTerminal {
		return e.Outcome.String() + " (proven)"
	}
	return fmt.Sprintf("%s (confidence %.2f, depth %d, seen %d)",
		e.Outcome, e.Confidence, e.Depth, e.VerifiedCount)
}
