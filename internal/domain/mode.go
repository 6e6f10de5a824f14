package domain

// Mode selects between plain retrieval and retrieval followed by summarization.
type Mode int

const (
	ModePlain Mode = iota
	ModeAugmented
)

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeAugmented {
		return ModePlain
	}
	return ModeAugmented
}

func (m Mode) String() string {
	if m == ModeAugmented {
		return "augmented"
	}
	return "plain"
}
