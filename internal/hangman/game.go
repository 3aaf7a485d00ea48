package hangman

import (
	"strings"
	"unicode"

	"github.com/klubhuset/backend/internal/model"
)

// MaxWrongGuesses is the number of wrong letters that loses the game
const MaxWrongGuesses = 6

// Game is the state of a single hangman round: a case-folded secret
// word and the distinct guessed letters in insertion order.
type Game struct {
	secret  string
	answer  string
	guessed []string
	active  bool
}

// ValidateWord checks that a word is alphabetic and at least 2 letters
func ValidateWord(word string) error {
	runes := []rune(word)
	if len(runes) < 2 {
		return model.ErrInvalidWord
	}
	for _, r := range runes {
		if !unicode.IsLetter(r) {
			return model.ErrInvalidWord
		}
	}
	return nil
}

// NewGame creates an active game for the given secret word
func NewGame(word string) *Game {
	return &Game{
		secret: strings.ToLower(word),
		answer: word,
		active: true,
	}
}

// Active reports whether guesses are still accepted
func (g *Game) Active() bool {
	return g.active
}

// Answer returns the literal secret word as supplied by the starter
func (g *Game) Answer() string {
	return g.answer
}

// Guess records a letter and reports whether it occurs in the secret.
// Re-guessing a letter is an error, not a silent no-op, so clients can
// special-case the duplicate signal.
func (g *Game) Guess(letter string) (bool, error) {
	folded := strings.ToLower(letter)
	runes := []rune(folded)
	if len(runes) != 1 || !unicode.IsLetter(runes[0]) {
		return false, model.ErrInvalidLetter
	}
	for _, guessed := range g.guessed {
		if guessed == folded {
			return false, model.ErrLetterAlreadyGuessed
		}
	}
	g.guessed = append(g.guessed, folded)
	return strings.Contains(g.secret, folded), nil
}

// Evaluate checks the end conditions after a guess. Win is checked
// before loss: guessing the last correct letter always wins, even if
// the wrong-letter count has already reached the limit. The active
// flag latches false once either condition holds.
func (g *Game) Evaluate() (gameOver, won, lost bool) {
	won = true
	for _, letter := range strings.Split(g.secret, "") {
		if !g.hasGuessed(letter) {
			won = false
			break
		}
	}

	if !won {
		wrong := 0
		for _, letter := range g.guessed {
			if !strings.Contains(g.secret, letter) {
				wrong++
			}
		}
		lost = wrong >= MaxWrongGuesses
	}

	if won || lost {
		g.active = false
	}
	return won || lost, won, lost
}

func (g *Game) hasGuessed(letter string) bool {
	for _, guessed := range g.guessed {
		if guessed == letter {
			return true
		}
	}
	return false
}

// View returns the client-facing projection: the masked word has each
// unguessed letter replaced by a placeholder, space-joined.
func (g *Game) View() model.GameView {
	letters := strings.Split(g.secret, "")
	masked := make([]string, len(letters))
	for i, letter := range letters {
		if g.hasGuessed(letter) {
			masked[i] = letter
		} else {
			masked[i] = "_"
		}
	}

	guessed := make([]string, len(g.guessed))
	copy(guessed, g.guessed)

	return model.GameView{
		MaskedWord: strings.Join(masked, " "),
		Guessed:    guessed,
		Active:     g.active,
	}
}
