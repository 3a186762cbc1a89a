package tracker

import "fmt"

// Kind identifies the detection method that produced a Detection.
type Kind int

const (
	FrontalFace Kind = iota
	ProfileFace
	UpperBody
)

// kindWeights is the fixed confidence table. These are not probabilities.
var kindWeights = [...]float64{
	FrontalFace: 1.0,
	ProfileFace: 0.8,
	UpperBody:   0.5,
}

var kindNames = [...]string{
	FrontalFace: "frontal",
	ProfileFace: "profile",
	UpperBody:   "body",
}

// Weight returns the confidence weight for the kind, or 0 for unknown kinds.
func (k Kind) Weight() float64 {
	if k < 0 || int(k) >= len(kindWeights) {
		return 0
	}
	return kindWeights[k]
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a wire name ("frontal", "profile", "body") to a Kind.
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown detection kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown detection kind %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
