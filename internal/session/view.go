package session

import "github.com/robalobadob/dailypuzzle/internal/game"

// View is what a player may see of their session.
type View struct {
	GameType   game.Type    `json:"gameType"`
	Date       string       `json:"date"`
	Status     game.Status  `json:"status"`
	Attempts   int          `json:"attempts"`
	MaxGuesses int          `json:"maxGuesses"`
	Guesses    []game.Guess `json:"guesses"`
	// HasImage reports that Image returns a picture for this session. Image
	// URLs name the candidate, so they never leave the server.
	HasImage bool            `json:"hasImage"`
	Hints    *Hints          `json:"hints,omitempty"`
	Target   *game.Candidate `json:"target,omitempty"` // terminal sessions only
}

// Hints carries the unlocked hint material of the title-guess variant.
// Locked material is left empty.
type Hints struct {
	game.Tier
	DescriptionText string   `json:"descriptionText,omitempty"`
	CharacterNames  []string `json:"characterNames,omitempty"`
}

func (s *Service) view(sess *game.Session, gameType game.Type, date string, target *game.Candidate) *View {
	v := &View{
		GameType:   gameType,
		Date:       date,
		Status:     game.StatusNotStarted,
		MaxGuesses: gameType.MaxGuesses(),
		Guesses:    []game.Guess{},
	}
	if sess != nil {
		v.Status = sess.Status
		v.Attempts = len(sess.Guesses)
		v.Guesses = append(v.Guesses, sess.Guesses...)
	}

	if gameType == game.TypeAnime {
		v.Hints = s.reveal(v.Attempts, v.Status, target)
	}
	v.HasImage = s.imageURL(gameType, v.Attempts, v.Status, target) != ""
	if v.Status.Terminal() {
		t := *target
		v.Target = &t
	}
	return v
}

// reveal discloses the hint material of every unlocked tier.
func (s *Service) reveal(attempts int, status game.Status, target *game.Candidate) *Hints {
	h := &Hints{Tier: s.hints.Reveal(attempts, status)}
	if h.Tier.Description {
		h.DescriptionText = redactedDescription(target)
	}
	if h.Tier.Characters {
		h.CharacterNames = append([]string(nil), target.Characters...)
	}
	return h
}

// imageURL is the upstream picture the session may see, or "" while locked.
func (s *Service) imageURL(gameType game.Type, attempts int, status game.Status, target *game.Candidate) string {
	switch gameType {
	case game.TypeBanner:
		return target.BannerURL
	case game.TypeAnime:
		if t := s.hints.Reveal(attempts, status); t.BlurredImage || t.FullImage {
			return target.ImageURL
		}
	}
	return ""
}
