package arena

import "fmt"

// Stage — этап расчёта, на котором произошла ошибка.
type Stage string

const (
	StageLeaderboard Stage = "leaderboard"
	StageClaim       Stage = "claim"
	StageWagers      Stage = "wagers"
	StageBets        Stage = "bets"
	StageStats       Stage = "stats"
	StagePersist     Stage = "persist"
	StageRefund      Stage = "refund"
)

// ProcessingError — сбой при расчёте челленджа. Расчёт откатывается целиком,
// после чего челлендж возвращается участникам и ставившим.
type ProcessingError struct {
	ChallengeID string
	Stage       Stage
	Err         error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("challenge %s: %s: %v", e.ChallengeID, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func processingErr(id string, stage Stage, err error) error {
	if err == nil {
		return nil
	}
	return &ProcessingError{ChallengeID: id, Stage: stage, Err: err}
}
