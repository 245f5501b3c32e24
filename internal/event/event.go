package event

import "fmt"

// Kind classifies an event. It is decided once, at parse time.
type Kind int

const (
	// KindCustom is a well-shaped line whose message is not a known phrase.
	KindCustom Kind = iota
	KindTookResource
	KindEating
	KindSleeping
	KindThinking
	KindDied
)

// Fixed phrases printed by a conforming simulator.
const (
	PhraseTookResource = "has taken a fork"
	PhraseEating       = "is eating"
	PhraseSleeping     = "is sleeping"
	PhraseThinking     = "is thinking"
	PhraseDied         = "died"
)

// QuotaLine is the substring of the terminal line printed when every actor
// reached its meal quota.
const QuotaLine = "All philosophers have eaten enough"

var kindNames = map[Kind]string{
	KindCustom:       "custom",
	KindTookResource: "took_resource",
	KindEating:       "eating",
	KindSleeping:     "sleeping",
	KindThinking:     "thinking",
	KindDied:         "died",
}

var phraseKinds = map[string]Kind{
	PhraseTookResource: KindTookResource,
	PhraseEating:       KindEating,
	PhraseSleeping:     KindSleeping,
	PhraseThinking:     KindThinking,
	PhraseDied:         KindDied,
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind returns the Kind named by s (as produced by Kind.String).
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindCustom, fmt.Errorf("unknown event kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Event is one parsed output line. Events are values and never mutated after
// parsing.
type Event struct {
	TimestampMS uint64 `json:"ts_ms"`
	ActorID     int    `json:"actor_id"`
	Kind        Kind   `json:"kind"`
	Message     string `json:"message"` // raw trailing text
}

// String renders the event back in the simulator's line format.
func (e Event) String() string {
	return fmt.Sprintf("%d %d %s", e.TimestampMS, e.ActorID, e.Message)
}
