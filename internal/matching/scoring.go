// internal/matching/scoring.go
// Compatibility scoring between two fitness profiles.
// Pure computation, no storage access.

package matching

import (
	"math"
	"strconv"
	"strings"

	"github.com/sweatmatch/sweatmatch-backend/internal/profile"
)

// Component caps
const (
	maxProximityScore    = 40
	maxWorkoutScore      = 25
	maxFitnessScore      = 20
	maxAvailabilityScore = 15

	neighborhoodBonus = 10

	// Partial availability credit: per weekday where both sides train
	// at all, capped well below a real slot overlap.
	availabilityDayCredit = 2
	maxPartialAvailScore  = 10
)

// ScoringEngine computes the compatibility score between two profiles.
// Scoring is directional: the first profile's preferences drive the
// workout and fitness components, so Score(a,b) != Score(b,a) in general.
type ScoringEngine interface {
	Score(a, b *profile.Profile) (int, ScoreBreakdown)
	Distance(a, b *profile.Profile) *float64
}

type scoringEngine struct{}

// NewScoringEngine creates the default scoring engine
func NewScoringEngine() ScoringEngine {
	return &scoringEngine{}
}

func (e *scoringEngine) Score(a, b *profile.Profile) (int, ScoreBreakdown) {
	breakdown := ScoreBreakdown{
		Proximity:    e.proximityScore(a, b),
		WorkoutMatch: e.workoutScore(a, b),
		FitnessMatch: e.fitnessScore(a, b),
		Availability: e.availabilityScore(a, b),
	}
	return breakdown.Total(), breakdown
}

// Distance returns the great-circle distance in km, or nil when either
// profile has no location
func (e *scoringEngine) Distance(a, b *profile.Profile) *float64 {
	if !a.HasLocation() || !b.HasLocation() {
		return nil
	}
	d := haversineDistance(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude)
	return &d
}

// proximityScore maps distance to a step scale and adds a bonus for a
// shared neighborhood label. Missing locations contribute 0, never null.
func (e *scoringEngine) proximityScore(a, b *profile.Profile) int {
	score := 0

	if d := e.Distance(a, b); d != nil {
		switch {
		case *d < 0.5:
			score = 40
		case *d < 1:
			score = 35
		case *d < 2:
			score = 30
		case *d < 5:
			score = 20
		case *d < 10:
			score = 10
		case *d < 20:
			score = 5
		}
	}

	if a.Neighborhood != nil && b.Neighborhood != nil &&
		*a.Neighborhood != "" && *a.Neighborhood == *b.Neighborhood {
		score += neighborhoodBonus
	}

	if score > maxProximityScore {
		score = maxProximityScore
	}

	return score
}

// workoutScore compares a's preferred workout types (falling back to the
// types a practices) against the types b practices
func (e *scoringEngine) workoutScore(a, b *profile.Profile) int {
	wanted := a.Preferences.WorkoutTypes
	if len(wanted) == 0 {
		wanted = a.WorkoutTypes
	}

	if len(wanted) == 0 || len(b.WorkoutTypes) == 0 {
		return 0
	}

	wantedSet := make(map[string]bool, len(wanted))
	for _, t := range wanted {
		wantedSet[t] = true
	}

	matches := 0
	for _, t := range b.WorkoutTypes {
		if wantedSet[t] {
			matches++
		}
	}

	larger := len(wanted)
	if len(b.WorkoutTypes) > larger {
		larger = len(b.WorkoutTypes)
	}

	return int(math.Round(float64(maxWorkoutScore) * float64(matches) / float64(larger)))
}

// fitnessScore gives full credit when b's level is one a wants, and
// partial credit by adjacency on the ordered level scale
func (e *scoringEngine) fitnessScore(a, b *profile.Profile) int {
	bIdx := profile.LevelIndex(b.FitnessLevel)
	if bIdx < 0 {
		return 0
	}

	wanted := a.Preferences.FitnessLevels
	if len(wanted) == 0 {
		wanted = []string{a.FitnessLevel}
	}

	minSteps := -1
	for _, level := range wanted {
		idx := profile.LevelIndex(level)
		if idx < 0 {
			continue
		}
		steps := bIdx - idx
		if steps < 0 {
			steps = -steps
		}
		if minSteps < 0 || steps < minSteps {
			minSteps = steps
		}
	}

	switch minSteps {
	case 0:
		return maxFitnessScore
	case 1:
		return 15
	case 2:
		return 8
	default:
		return 0
	}
}

// availabilityScore gives full credit for any overlapping slot on any
// weekday, otherwise partial credit for weekdays both sides train.
// Weekday keys are compared case-insensitively on both sides.
func (e *scoringEngine) availabilityScore(a, b *profile.Profile) int {
	bDays := make(map[string][]profile.TimeRange, len(b.Availability))
	for day, slots := range b.Availability {
		bDays[strings.ToLower(day)] = slots
	}

	sharedDays := 0

	for day, slotsA := range a.Availability {
		slotsB, ok := bDays[strings.ToLower(day)]
		if !ok || len(slotsA) == 0 || len(slotsB) == 0 {
			continue
		}

		sharedDays++

		for _, sa := range slotsA {
			for _, sb := range slotsB {
				if slotsOverlap(sa, sb) {
					return maxAvailabilityScore
				}
			}
		}
	}

	partial := sharedDays * availabilityDayCredit
	if partial > maxPartialAvailScore {
		partial = maxPartialAvailScore
	}

	return partial
}

// slotsOverlap tests two time ranges for intersection in minutes since
// midnight: [startA, endA) and [startB, endB) intersect iff
// startA < endB && startB < endA
func slotsOverlap(a, b profile.TimeRange) bool {
	startA, okA1 := parseMinutes(a.Start)
	endA, okA2 := parseMinutes(a.End)
	startB, okB1 := parseMinutes(b.Start)
	endB, okB2 := parseMinutes(b.End)

	if !okA1 || !okA2 || !okB1 || !okB2 {
		return false
	}

	return startA < endB && startB < endA
}

// parseMinutes converts "HH:MM" to minutes since midnight
func parseMinutes(s string) (int, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}

	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, false
	}
	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, false
	}

	return hours*60 + minutes, true
}

// haversineDistance returns the great-circle distance in km
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371 // km

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
