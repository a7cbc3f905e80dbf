package arena

import "github.com/marquessam/select-start-bot2-sub000/internal/features/leaderboard"

// Outcome — итог челленджа. Пустой WinnerID означает ничью или отсутствие результатов.
type Outcome struct {
	WinnerID       string
	WinnerUsername string
	// Standings — места участников в порядке Challenge.Participants
	Standings []Participant
}

// HasWinner сообщает, определён ли единственный победитель.
func (o Outcome) HasWinner() bool { return o.WinnerID != "" }

// DisplayWinner — ник победителя или "Tie".
func (o Outcome) DisplayWinner() string {
	if o.HasWinner() {
		return o.WinnerUsername
	}
	return TieUsername
}

// DetermineWinner выбирает участника с наименьшим ненулевым местом.
// Несколько участников на лучшем месте или ни одного с результатом — ничья.
// entries сопоставляются с участниками по порядку: entries[i] — места participants[i].
func DetermineWinner(participants []Participant, entries []leaderboard.Entry) Outcome {
	out := Outcome{Standings: make([]Participant, len(participants))}

	best, count := 0, 0
	var winner Participant
	for idx, p := range participants {
		if idx < len(entries) {
			p.Rank = entries[idx].Rank
			p.Score = entries[idx].FormattedScore
		}
		out.Standings[idx] = p

		if p.Rank <= 0 {
			continue
		}
		switch {
		case best == 0 || p.Rank < best:
			best, count, winner = p.Rank, 1, p
		case p.Rank == best:
			count++
		}
	}

	if count == 1 {
		out.WinnerID = winner.UserID
		out.WinnerUsername = winner.Username
	}
	return out
}
