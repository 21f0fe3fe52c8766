// internal/profile/models.go

package profile

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Fitness levels, ordered weakest to strongest. Adjacency on this scale
// feeds the compatibility score.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
	LevelExpert       = "expert"
)

// FitnessLevels is the ordered scale used for adjacency scoring
var FitnessLevels = []string{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert}

// LevelIndex returns the position of a fitness level on the ordered scale,
// or -1 if the level is unknown
func LevelIndex(level string) int {
	for i, l := range FitnessLevels {
		if l == level {
			return i
		}
	}
	return -1
}

// TimeRange is a slot within a day, "HH:MM" 24h format
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Availability maps lowercase weekday names to time slots
type Availability map[string][]TimeRange

// Scan implements the sql.Scanner interface for Availability
func (a *Availability) Scan(value interface{}) error {
	if value == nil {
		*a = Availability{}
		return nil
	}
	if bytes, ok := value.([]byte); ok {
		return json.Unmarshal(bytes, a)
	}
	return fmt.Errorf("unsupported type for availability: %T", value)
}

// Value implements the driver.Valuer interface for Availability
func (a Availability) Value() (driver.Value, error) {
	if a == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(a)
}

// Preferences holds a user's match preferences
type Preferences struct {
	MaxDistanceKM  float64  `json:"max_distance_km,omitempty"`
	Gender         string   `json:"gender,omitempty"`
	FitnessLevels  []string `json:"fitness_levels,omitempty"`
	WorkoutTypes   []string `json:"workout_types,omitempty"`
	AgeMin         int      `json:"age_min,omitempty"`
	AgeMax         int      `json:"age_max,omitempty"`
	VerifiedOnly   bool     `json:"verified_only,omitempty"`
}

// Scan implements the sql.Scanner interface for Preferences
func (p *Preferences) Scan(value interface{}) error {
	if value == nil {
		*p = Preferences{}
		return nil
	}
	if bytes, ok := value.([]byte); ok {
		return json.Unmarshal(bytes, p)
	}
	return fmt.Errorf("unsupported type for preferences: %T", value)
}

// Value implements the driver.Valuer interface for Preferences
func (p Preferences) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Profile represents a user's fitness profile
type Profile struct {
	UserID       int64          `json:"user_id" db:"user_id"`
	DisplayName  string         `json:"display_name" db:"display_name"`
	Gender       *string        `json:"gender,omitempty" db:"gender"`
	BirthDate    *time.Time     `json:"birth_date,omitempty" db:"birth_date"`
	Latitude     *float64       `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64       `json:"longitude,omitempty" db:"longitude"`
	Neighborhood *string        `json:"neighborhood,omitempty" db:"neighborhood"`
	City         *string        `json:"city,omitempty" db:"city"`
	FitnessLevel string         `json:"fitness_level" db:"fitness_level"`
	WorkoutTypes pq.StringArray `json:"workout_types" db:"workout_types"`
	Availability Availability   `json:"availability" db:"availability"`
	Preferences  Preferences    `json:"preferences" db:"preferences"`
	IsVisible    bool           `json:"is_visible" db:"is_visible"`
	IsVerified   bool           `json:"is_verified" db:"is_verified"`
	BlockedUsers pq.Int64Array  `json:"-" db:"blocked_users"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// HasLocation reports whether the profile carries a usable geo point
func (p *Profile) HasLocation() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Age returns the profile's age in years, or 0 if no birth date is set
func (p *Profile) Age() int {
	if p.BirthDate == nil {
		return 0
	}
	now := time.Now()
	age := now.Year() - p.BirthDate.Year()
	if now.YearDay() < p.BirthDate.YearDay() {
		age--
	}
	return age
}

// HasBlocked reports whether the profile owner has blocked the given user
func (p *Profile) HasBlocked(userID int64) bool {
	for _, id := range p.BlockedUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// UpdateProfileRequest is the payload for profile updates
type UpdateProfileRequest struct {
	DisplayName  *string       `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Gender       *string       `json:"gender,omitempty"`
	Latitude     *float64      `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude    *float64      `json:"longitude,omitempty" validate:"omitempty,longitude"`
	Neighborhood *string       `json:"neighborhood,omitempty" validate:"omitempty,max=100"`
	City         *string       `json:"city,omitempty" validate:"omitempty,max=100"`
	FitnessLevel *string       `json:"fitness_level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	WorkoutTypes []string      `json:"workout_types,omitempty" validate:"omitempty,max=20"`
	Availability *Availability `json:"availability,omitempty"`
	Preferences  *Preferences  `json:"preferences,omitempty"`
	IsVisible    *bool         `json:"is_visible,omitempty"`
}
