// Package match folds a room's event log into one player's view of the game.
//
// Scores here are computed by the players' own clients from their own
// submissions and the relayed submissions of the opponent. Nothing on the
// server arbitrates them; a future authoritative scorer replaces this package.
package match

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/sign"
)

// PointsPerLetter is awarded once per correct letter per question.
const PointsPerLetter = 10

var ErrMalformedPayload = errors.New("malformed message payload")

// View is the UI state of a match for one player.
type View struct {
	PlayerID           string              `json:"player_id"`
	OpponentID         string              `json:"opponent_id,omitempty"`
	OpponentName       string              `json:"opponent_name,omitempty"`
	OpponentLeft       bool                `json:"opponent_left"`
	GameState          model.GameState     `json:"game_state"`
	QuestionIndex      int                 `json:"question_index"`
	MyScore            int                 `json:"my_score"`
	OpponentScore      int                 `json:"opponent_score"`
	LastOpponentAnswer *model.PlayerAnswer `json:"last_opponent_answer,omitempty"`
}

// Tracker is the per-player, per-match reconciliation state.
// It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	view     View
	hostID   string
	own      map[string]struct{}
	opponent map[string]struct{}
}

// NewTracker seeds a tracker for playerID from the room as it is now.
func NewTracker(playerID string, room *model.MultiplayerRoom) *Tracker {
	t := &Tracker{
		view:     View{PlayerID: playerID, GameState: model.GameStateWaiting},
		own:      make(map[string]struct{}),
		opponent: make(map[string]struct{}),
	}
	if room == nil {
		return t
	}

	t.hostID = room.HostID
	t.view.GameState = room.GameState
	t.view.QuestionIndex = room.CurrentQuestionIndex
	if room.IsHost(playerID) {
		t.view.OpponentID, t.view.OpponentName = room.JoinerID, room.JoinerName
	} else {
		t.view.OpponentID, t.view.OpponentName = room.HostID, room.HostName
	}
	return t
}

// View returns a copy of the current state.
func (t *Tracker) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := t.view
	if v.LastOpponentAnswer != nil {
		a := *v.LastOpponentAnswer
		v.LastOpponentAnswer = &a
	}
	return v
}

// SetQuestion moves to index; the credited sets reset only when it changes.
func (t *Tracker) SetQuestion(index int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setQuestion(index)
}

// SubmitOwn applies a local submission optimistically and returns the points
// it earned.
func (t *Tracker) SubmitOwn(answer string, correct bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	points := credit(t.own, answer, correct)
	t.view.MyScore += points
	return points
}

// Replay folds a backlog of messages, crediting the player's own earlier
// submissions as well as the opponent's. Use it once, before live messages.
func (t *Tracker) Replay(msgs []model.GameMessage) []error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var errs []error
	for _, msg := range msgs {
		if _, err := t.apply(msg, true); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Apply folds one live message. It reports whether the view changed.
// A malformed payload returns ErrMalformedPayload and leaves the view alone.
func (t *Tracker) Apply(msg model.GameMessage) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.apply(msg, false)
}

func (t *Tracker) apply(msg model.GameMessage, replay bool) (bool, error) {
	switch msg.Type {
	case model.MessagePlayerJoined:
		// Only the host sees joiners come and go; a joiner's opponent is
		// always the host.
		if t.hostID == "" || t.view.PlayerID != t.hostID || msg.PlayerID == t.view.PlayerID {
			return false, nil
		}
		if msg.PlayerID != t.view.OpponentID {
			t.view.OpponentID = msg.PlayerID
			t.view.OpponentScore = 0
			t.view.LastOpponentAnswer = nil
			t.opponent = make(map[string]struct{})
		}
		t.view.OpponentName = msg.PlayerName
		t.view.OpponentLeft = false
		return true, nil

	case model.MessagePlayerLeft:
		if msg.PlayerID != t.view.OpponentID || msg.PlayerID == "" {
			return false, nil
		}
		t.view.OpponentLeft = true
		return true, nil

	case model.MessageGameStart:
		t.view.GameState = model.GameStatePlaying
		t.view.MyScore = 0
		t.view.OpponentScore = 0
		t.view.LastOpponentAnswer = nil
		t.resetCredited()
		return true, nil

	case model.MessageGameEnd:
		t.view.GameState = model.GameStateFinished
		return true, nil

	case model.MessageQuestionChange:
		index, err := strconv.Atoi(msg.Payload)
		if err != nil || index < 0 {
			return false, fmt.Errorf("%w: question index %q", ErrMalformedPayload, msg.Payload)
		}
		t.setQuestion(index)
		return true, nil

	case model.MessageAnswerSubmitted:
		var answer model.PlayerAnswer
		if err := json.Unmarshal([]byte(msg.Payload), &answer); err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}

		switch {
		case msg.PlayerID != "" && msg.PlayerID == t.view.OpponentID:
			t.view.OpponentScore += credit(t.opponent, answer.Answer, answer.IsCorrect)
			t.view.LastOpponentAnswer = &answer
			return true, nil
		case replay && msg.PlayerID == t.view.PlayerID:
			t.view.MyScore += credit(t.own, answer.Answer, answer.IsCorrect)
			return true, nil
		default:
			return false, nil
		}
	}

	return false, nil
}

func (t *Tracker) setQuestion(index int) {
	if index == t.view.QuestionIndex {
		return
	}
	t.view.QuestionIndex = index
	t.resetCredited()
}

func (t *Tracker) resetCredited() {
	t.own = make(map[string]struct{})
	t.opponent = make(map[string]struct{})
}

// credit awards PointsPerLetter the first time a correct token is seen.
func credit(seen map[string]struct{}, answer string, correct bool) int {
	if !correct {
		return 0
	}
	token := sign.Normalize(answer)
	if token == "" {
		return 0
	}
	if _, ok := seen[token]; ok {
		return 0
	}
	seen[token] = struct{}{}
	return PointsPerLetter
}
