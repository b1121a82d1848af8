package game

// Tier is the set of hints unlocked for a session.
type Tier struct {
	Description  bool `json:"description"`
	Characters   bool `json:"characters"`
	BlurredImage bool `json:"blurredImage"`
	FullImage    bool `json:"fullImage"`
}

// HintLadder holds the cumulative attempt counts at which each hint unlocks.
type HintLadder struct {
	Description  int
	Characters   int
	BlurredImage int
	FullImage    int
}

// DefaultHintLadder unlocks at 4, 8, 12 and 16 guesses.
var DefaultHintLadder = HintLadder{Description: 4, Characters: 8, BlurredImage: 12, FullImage: 16}

// HintTier derives the unlocked tier from the cumulative attempt count, so a
// tier never locks again once reached.
func (l HintLadder) HintTier(attemptCount int) Tier {
	return Tier{
		Description:  attemptCount >= l.Description,
		Characters:   attemptCount >= l.Characters,
		BlurredImage: attemptCount >= l.BlurredImage,
		FullImage:    attemptCount >= l.FullImage,
	}
}

// Reveal is HintTier plus the game-over rule: a terminal session shows the full image.
func (l HintLadder) Reveal(attemptCount int, status Status) Tier {
	t := l.HintTier(attemptCount)
	if status.Terminal() {
		t.FullImage = true
	}
	return t
}
