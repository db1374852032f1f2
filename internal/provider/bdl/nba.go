package bdl

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/albapepper/scoracle-pbp/internal/pbp"
)

// NBAHandler fetches NBA games and plays from BallDontLie and flattens them
// into raw tables using BDL's own field names.
type NBAHandler struct {
	client *Client
	logger *slog.Logger
}

// NewNBAHandler creates an NBA handler with the given API key.
func NewNBAHandler(baseURL, apiKey string, logger *slog.Logger) *NBAHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NBAHandler{
		client: NewClient(baseURL, apiKey, 600, logger),
		logger: logger,
	}
}

// GameColumns is the header of the flattened games table.
var GameColumns = []string{
	"game_id", "date", "season", "status", "period", "postseason",
	"home_team_id", "home_team_abbr", "home_score",
	"visitor_team_id", "visitor_team_abbr", "visitor_score",
}

// PlayColumns is the header of the flattened play-by-play table.
var PlayColumns = []string{
	"game_id", "order", "type", "text", "home_score", "away_score",
	"period", "clock", "scoring_play", "shooting_play", "score_value",
	"team_id", "team_abbr", "coordinate_x", "coordinate_y",
}

type bdlTeamRaw struct {
	ID           int    `json:"id"`
	Abbreviation string `json:"abbreviation"`
	FullName     string `json:"full_name"`
}

// --------------------------------------------------------------------------
// Games (cursor-paginated)
// --------------------------------------------------------------------------

type bdlGameRaw struct {
	ID               int         `json:"id"`
	Date             string      `json:"date"`
	Season           *int        `json:"season"`
	Status           string      `json:"status"`
	Period           *int        `json:"period"`
	Postseason       *bool       `json:"postseason"`
	HomeTeam         *bdlTeamRaw `json:"home_team"`
	VisitorTeam      *bdlTeamRaw `json:"visitor_team"`
	HomeTeamScore    *int        `json:"home_team_score"`
	VisitorTeamScore *int        `json:"visitor_team_score"`
}

// GetGames pages through /games for a date range (YYYY-MM-DD, inclusive).
// A non-zero season narrows the query further.
func (h *NBAHandler) GetGames(ctx context.Context, startDate, endDate string, season int) (pbp.RawTable, error) {
	params := url.Values{
		"start_date": {startDate},
		"end_date":   {endDate},
		"per_page":   {"100"},
	}
	if season > 0 {
		params.Set("seasons[]", strconv.Itoa(season))
	}

	out := pbp.RawTable{Columns: GameColumns}
	for {
		resp, err := h.client.get(ctx, "/games", params)
		if err != nil {
			return pbp.RawTable{}, fmt.Errorf("fetch NBA games: %w", err)
		}

		var raw []bdlGameRaw
		if err := json.Unmarshal(resp.Data, &raw); err != nil {
			return pbp.RawTable{}, fmt.Errorf("decode NBA games: %w", err)
		}
		for _, g := range raw {
			out.Rows = append(out.Rows, flattenGame(g))
		}

		if resp.Meta.NextCursor == nil {
			break
		}
		params.Set("cursor", strconv.Itoa(*resp.Meta.NextCursor))
	}
	return out, nil
}

func flattenGame(g bdlGameRaw) []string {
	home, visitor := teamCells(g.HomeTeam), teamCells(g.VisitorTeam)
	return []string{
		strconv.Itoa(g.ID), g.Date, fmtInt(g.Season), g.Status,
		fmtInt(g.Period), fmtBool(g.Postseason),
		home[0], home[1], fmtInt(g.HomeTeamScore),
		visitor[0], visitor[1], fmtInt(g.VisitorTeamScore),
	}
}

// --------------------------------------------------------------------------
// Plays (single response per game)
// --------------------------------------------------------------------------

type bdlPlayRaw struct {
	GameID       int         `json:"game_id"`
	Order        *int        `json:"order"`
	Type         string      `json:"type"`
	Text         string      `json:"text"`
	HomeScore    *int        `json:"home_score"`
	AwayScore    *int        `json:"away_score"`
	Period       *int        `json:"period"`
	Clock        string      `json:"clock"`
	ScoringPlay  *bool       `json:"scoring_play"`
	ShootingPlay *bool       `json:"shooting_play"`
	ScoreValue   *int        `json:"score_value"`
	Team         *bdlTeamRaw `json:"team"`
	CoordinateX  *float64    `json:"coordinate_x"`
	CoordinateY  *float64    `json:"coordinate_y"`
}

// GetPlays fetches the play-by-play for one game as flattened rows.
func (h *NBAHandler) GetPlays(ctx context.Context, gameID int) ([][]string, error) {
	resp, err := h.client.get(ctx, "/plays", url.Values{"game_id": {strconv.Itoa(gameID)}})
	if err != nil {
		return nil, fmt.Errorf("fetch plays for game %d: %w", gameID, err)
	}

	var raw []bdlPlayRaw
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		return nil, fmt.Errorf("decode plays for game %d: %w", gameID, err)
	}

	rows := make([][]string, len(raw))
	for i, p := range raw {
		rows[i] = flattenPlay(p, gameID)
	}
	return rows, nil
}

func flattenPlay(p bdlPlayRaw, gameID int) []string {
	if p.GameID == 0 {
		p.GameID = gameID
	}
	team := teamCells(p.Team)
	return []string{
		strconv.Itoa(p.GameID), fmtInt(p.Order), p.Type, p.Text,
		fmtInt(p.HomeScore), fmtInt(p.AwayScore),
		fmtInt(p.Period), p.Clock,
		fmtBool(p.ScoringPlay), fmtBool(p.ShootingPlay), fmtInt(p.ScoreValue),
		team[0], team[1],
		fmtFloat(p.CoordinateX), fmtFloat(p.CoordinateY),
	}
}

// --------------------------------------------------------------------------
// Cell formatting
// --------------------------------------------------------------------------

func teamCells(t *bdlTeamRaw) [2]string {
	if t == nil {
		return [2]string{}
	}
	return [2]string{strconv.Itoa(t.ID), t.Abbreviation}
}

func fmtInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func fmtBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func fmtFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
