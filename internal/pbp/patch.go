package pbp

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	threePointPattern = regexp.MustCompile(`3pt|three.?point|3-point|3 point`)
)

const (
	freeThrowMarker = "free throw"
	madeMarker      = "makes"
)

// PatchStats counts the rows touched by each metadata patch.
type PatchStats struct {
	FTFlagFixed        int `json:"ft_flag_fixed"`
	ScoreValueInferred int `json:"score_value_inferred"`
	InferredThree      int `json:"inferred_three"`
	InferredFreeThrow  int `json:"inferred_free_throw"`
	InferredDefault    int `json:"inferred_default"`
}

// Summary returns a human-readable summary of the patch pass.
func (s PatchStats) Summary() string {
	return fmt.Sprintf("ft_flag_fixed=%d score_value_inferred=%d (three=%d ft=%d default=%d)",
		s.FTFlagFixed, s.ScoreValueInferred,
		s.InferredThree, s.InferredFreeThrow, s.InferredDefault)
}

// Patch corrects two systematic metadata defects in BDL play-by-play before
// any score logic runs:
//
//  1. Free-throw rows whose text says the shot was made but whose
//     scoring_play flag is false get scoring_play=true, and score_value=1
//     when it is missing.
//  2. Scoring rows with a missing score_value get one inferred from
//     type/text: 1 for a free throw, 3 for a three-point attempt, else 2.
//
// The input is not modified; rows are returned in the same order.
func Patch(events []Event) ([]PatchedEvent, PatchStats) {
	var stats PatchStats
	out := make([]PatchedEvent, len(events))

	for i, ev := range events {
		typ := strings.ToLower(ev.Type)
		text := strings.ToLower(ev.Text)
		isFTRow := strings.Contains(typ, freeThrowMarker)

		if isFTRow && strings.Contains(text, madeMarker) && !ev.ScoringPlay {
			ev.ScoringPlay = true
			if ev.ScoreValue == nil {
				ev.ScoreValue = intPtr(1)
			}
			stats.FTFlagFixed++
		}

		if ev.ScoringPlay && ev.ScoreValue == nil {
			switch {
			case isFTRow || strings.Contains(text, freeThrowMarker):
				ev.ScoreValue = intPtr(1)
				stats.InferredFreeThrow++
			case threePointPattern.MatchString(typ) || threePointPattern.MatchString(text):
				ev.ScoreValue = intPtr(3)
				stats.InferredThree++
			default:
				ev.ScoreValue = intPtr(2)
				stats.InferredDefault++
			}
			stats.ScoreValueInferred++
		}

		if ev.Extra != nil {
			ev.Extra = append([]string(nil), ev.Extra...)
		}
		out[i] = PatchedEvent{Event: ev}
	}
	return out, stats
}

func intPtr(n int) *int { return &n }
