// Package scoring turns session aggregates from the vision service into
// persisted tracking results.
package scoring

import (
	"encoding/json"
	"time"

	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/classroom"
	"github.com/Harshita-1964/Virtual-Learning-Platform/internal/visionclient"
)

// Blend weights for the component signals.
const (
	weightExpression  = 0.70
	weightEyeMovement = 0.15
	weightBlink       = 0.10
	weightPosture     = 0.05
)

// Normal per-minute ranges for the rate-based components. Adults blink
// 8-20 times a minute; focused work shows few large eye movements and
// posture shifts.
var (
	normalBlinksPerMin         = [2]float64{8, 20}
	normalEyeMovementsPerMin   = [2]float64{1, 5}
	normalPostureChangesPerMin = [2]float64{0, 3}
)

// Histogram holds category counts, e.g. facial expressions or posture states.
type Histogram map[string]int

// Sum returns the total count across all categories.
func (h Histogram) Sum() int {
	total := 0
	for _, v := range h {
		total += v
	}
	return total
}

// Percentages converts counts to percentage of total. An all-zero histogram
// yields 0 for every category rather than dividing by zero.
func (h Histogram) Percentages() map[string]float64 {
	out := make(map[string]float64, len(h))
	total := h.Sum()
	for k, v := range h {
		if total == 0 {
			out[k] = 0
			continue
		}
		out[k] = float64(v) / float64(total) * 100
	}
	return out
}

// SessionData is the opaque blob stored inside a TrackingResult, holding the
// raw histograms for later percentage breakdowns by report consumers.
type SessionData struct {
	FacialExpressions Histogram `json:"facial_expressions"`
	PostureStates     Histogram `json:"posture_states"`
}

// ParseSessionData decodes a stored sessionData blob.
func ParseSessionData(blob string) (*SessionData, error) {
	var sd SessionData
	if err := json.Unmarshal([]byte(blob), &sd); err != nil {
		return nil, err
	}
	return &sd, nil
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// rateScore maps a per-minute rate to 0-100: full marks inside the normal
// range, linear falloff outside it.
func rateScore(perMin float64, normal [2]float64) float64 {
	switch {
	case perMin < normal[0]:
		deficit := normal[0] - perMin
		return clamp(100 - deficit*(100/normal[0]))
	case perMin > normal[1]:
		excess := perMin - normal[1]
		return clamp(100 - excess*10)
	default:
		return 100
	}
}

// Score computes the 0-100 attentiveness score for a session aggregate. The
// analysis service is authoritative when it returns a blended score; when it
// returns only raw counts, the weighted blend is computed here.
func Score(agg *visionclient.SessionAggregate, duration time.Duration) float64 {
	if agg.AttentivenessScore != nil {
		return clamp(*agg.AttentivenessScore)
	}

	expressions := Histogram(agg.FacialExpressions)
	postures := Histogram(agg.PostureStates)

	// Expression component: share of frames spent focused or neutral.
	expressionScore := 0.0
	if total := expressions.Sum(); total > 0 {
		focused := expressions["focused"] + expressions["neutral"]
		expressionScore = float64(focused) / float64(total) * 100
	}

	// Posture component: upright frames, with leaning forward counted as
	// acceptable study posture at reduced credit.
	postureScore := 0.0
	if total := postures.Sum(); total > 0 {
		good := float64(postures["upright"]) + 0.7*float64(postures["leaning_forward"])
		postureScore = clamp(good / float64(total) * 100)
	}

	minutes := duration.Minutes()
	if minutes < 1.0/60 {
		minutes = 1.0 / 60
	}
	blinkScore := rateScore(float64(agg.EyeBlinks)/minutes, normalBlinksPerMin)
	eyeScore := rateScore(float64(agg.EyeMovements)/minutes, normalEyeMovementsPerMin)
	postureRate := rateScore(float64(agg.PostureChanges)/minutes, normalPostureChangesPerMin)

	// Posture blends the state histogram with the fidgeting rate.
	postureComponent := (postureScore + postureRate) / 2

	blended := expressionScore*weightExpression +
		eyeScore*weightEyeMovement +
		blinkScore*weightBlink +
		postureComponent*weightPosture
	return clamp(blended)
}

// BuildResult assembles the immutable record persisted for one completed
// session. endTime is floored to startTime so duration is never negative.
func BuildResult(userID, subjectID int64, startTime, endTime time.Time, agg *visionclient.SessionAggregate) (classroom.TrackingResult, error) {
	if endTime.Before(startTime) {
		endTime = startTime
	}

	sd := SessionData{
		FacialExpressions: Histogram(agg.FacialExpressions),
		PostureStates:     Histogram(agg.PostureStates),
	}
	if sd.FacialExpressions == nil {
		sd.FacialExpressions = Histogram{}
	}
	if sd.PostureStates == nil {
		sd.PostureStates = Histogram{}
	}
	blob, err := json.Marshal(sd)
	if err != nil {
		return classroom.TrackingResult{}, err
	}

	return classroom.TrackingResult{
		UserID:             userID,
		SubjectID:          subjectID,
		SessionDate:        startTime.Truncate(24 * time.Hour),
		StartTime:          startTime,
		EndTime:            endTime,
		EyeMovementCount:   agg.EyeMovements,
		EyeBlinkCount:      agg.EyeBlinks,
		PostureChangeCount: agg.PostureChanges,
		AttentivenessScore: Score(agg, endTime.Sub(startTime)),
		SessionData:        string(blob),
	}, nil
}
