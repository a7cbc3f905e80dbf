// Package leaderboard получает места игроков из лидербордов RetroAchievements.
// Арена использует его, чтобы определить победителя челленджа.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// pageSize — максимум записей за один запрос API_GetLeaderboardEntries.
const pageSize = 500

// defaultMaxPages ограничивает обход огромных лидербордов.
const defaultMaxPages = 20

// ErrTruncated — лимит страниц исчерпан, а часть игроков так и не найдена.
// Считать их «без результата» нельзя: они могут стоять ниже просмотренных страниц.
var ErrTruncated = errors.New("лидерборд просмотрен не полностью")

// Entry — место игрока. Rank 0 означает «нет результата».
type Entry struct {
	Username       string
	Rank           int
	Score          int64
	FormattedScore string
}

// Ranked сообщает, есть ли у игрока зачётный результат.
func (e Entry) Ranked() bool { return e.Rank > 0 }

// Game — краткая информация об игре.
type Game struct {
	ID          int
	Title       string
	ConsoleName string
}

// Lookup — то, что нужно арене от источника лидербордов.
type Lookup interface {
	Ranks(ctx context.Context, gameID, leaderboardID int, usernames []string) ([]Entry, error)
}

// Client — HTTP-клиент RetroAchievements Web API.
type Client struct {
	baseURL  string
	apiUser  string
	apiKey   string
	http     *http.Client
	attempts int
	backoff  time.Duration
	maxPages int
}

// NewClient создаёт клиент. baseURL без завершающего слеша, например https://retroachievements.org/API.
func NewClient(baseURL, apiUser, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiUser:  apiUser,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		attempts: 3,
		backoff:  time.Second,
		maxPages: defaultMaxPages,
	}
}

type entriesResponse struct {
	Count   int `json:"Count"`
	Total   int `json:"Total"`
	Results []struct {
		User           string `json:"User"`
		Rank           int    `json:"Rank"`
		Score          int64  `json:"Score"`
		FormattedScore string `json:"FormattedScore"`
	} `json:"Results"`
}

type gameResponse struct {
	Title       string `json:"Title"`
	ConsoleName string `json:"ConsoleName"`
}

// Ranks возвращает по записи на каждого из usernames (в том же порядке).
// Игроки без результата получают Rank 0. Сравнение ников без учёта регистра.
func (c *Client) Ranks(ctx context.Context, gameID, leaderboardID int, usernames []string) ([]Entry, error) {
	wanted := make(map[string]int, len(usernames))
	for idx, name := range usernames {
		wanted[strings.ToLower(name)] = idx
	}

	out := make([]Entry, len(usernames))
	for idx, name := range usernames {
		out[idx] = Entry{Username: name}
	}

	found, exhausted := 0, false
	for page := 0; page < c.maxPages && found < len(wanted); page++ {
		var resp entriesResponse
		params := url.Values{
			"i": {strconv.Itoa(leaderboardID)},
			"o": {strconv.Itoa(page * pageSize)},
			"c": {strconv.Itoa(pageSize)},
		}
		if err := c.get(ctx, "API_GetLeaderboardEntries.php", params, &resp); err != nil {
			return nil, fmt.Errorf("лидерборд %d (игра %d): %w", leaderboardID, gameID, err)
		}

		for _, r := range resp.Results {
			idx, ok := wanted[strings.ToLower(r.User)]
			if !ok || out[idx].Rank > 0 {
				continue
			}
			out[idx].Rank = r.Rank
			out[idx].Score = r.Score
			out[idx].FormattedScore = r.FormattedScore
			found++
		}

		if len(resp.Results) < pageSize || (page+1)*pageSize >= resp.Total {
			exhausted = true
			break
		}
	}

	if found < len(wanted) && !exhausted {
		log.WithFields(log.Fields{
			"component":      "leaderboard",
			"leaderboard_id": leaderboardID,
			"pages":          c.maxPages,
			"missing":        len(wanted) - found,
		}).Warn("Лимит страниц лидерборда исчерпан")
		return nil, fmt.Errorf("лидерборд %d (игра %d): %w: не найдено %d из %d",
			leaderboardID, gameID, ErrTruncated, len(wanted)-found, len(wanted))
	}

	log.WithFields(log.Fields{
		"component":      "leaderboard",
		"game_id":        gameID,
		"leaderboard_id": leaderboardID,
		"wanted":         len(usernames),
		"found":          found,
	}).Debug("Места в лидерборде получены")

	return out, nil
}

// Game возвращает название игры и платформы.
func (c *Client) Game(ctx context.Context, gameID int) (*Game, error) {
	var resp gameResponse
	if err := c.get(ctx, "API_GetGame.php", url.Values{"i": {strconv.Itoa(gameID)}}, &resp); err != nil {
		return nil, fmt.Errorf("игра %d: %w", gameID, err)
	}
	if resp.Title == "" {
		return nil, fmt.Errorf("игра %d не найдена", gameID)
	}
	return &Game{ID: gameID, Title: resp.Title, ConsoleName: resp.ConsoleName}, nil
}

// errRetryable помечает ответы, которые имеет смысл повторить (429, 5xx, сеть).
var errRetryable = errors.New("retryable")

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("y", c.apiKey)
	if c.apiUser != "" {
		params.Set("z", c.apiUser)
	}
	u := c.baseURL + "/" + endpoint + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		lastErr = c.doGet(ctx, u, out)
		if lastErr == nil || !errors.Is(lastErr, errRetryable) {
			return lastErr
		}
		if attempt == c.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	return lastErr
}

func (c *Client) doGet(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", errRetryable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fmt.Errorf("%w: статус %d", errRetryable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("неожиданный статус %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка разбора ответа: %w", err)
	}
	return nil
}
