// Package model contains domain models passed between layers.
//
// JSON and BSON names follow the public API: identifiers are "_id" and the
// password hash is stored but never rendered.
package model

import "time"

// Document is implemented by every stored entity so stores can read and
// assign identifiers without knowing the concrete type.
type Document[T any] interface {
	DocumentID() string
	WithDocumentID(id string) T
}

// User is a registered athlete.
type User struct {
	ID        string    `json:"_id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Password  string    `json:"-" bson:"password"`
	Team      string    `json:"team" bson:"team"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Team groups users under a display name.
type Team struct {
	ID          string    `json:"_id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Members     []string  `json:"members" bson:"members"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

// Activity is one logged exercise session owned by a user.
type Activity struct {
	ID       string    `json:"_id" bson:"_id"`
	UserID   string    `json:"user_id" bson:"user_id"`
	Type     string    `json:"type" bson:"type"`
	Duration int       `json:"duration" bson:"duration"` // minutes
	Distance float64   `json:"distance" bson:"distance"` // km
	Calories int       `json:"calories" bson:"calories"`
	Date     time.Time `json:"date" bson:"date"`
	Notes    string    `json:"notes" bson:"notes"`
}

// LeaderboardEntry is one ranked row produced by the aggregator.
type LeaderboardEntry struct {
	ID            string    `json:"_id" bson:"_id"`
	UserID        string    `json:"user_id" bson:"user_id"`
	Team          string    `json:"team" bson:"team"`
	TotalCalories int       `json:"total_calories" bson:"total_calories"`
	TotalDuration int       `json:"total_duration" bson:"total_duration"`
	TotalDistance float64   `json:"total_distance" bson:"total_distance"`
	Rank          int       `json:"rank" bson:"rank"`
	LastUpdated   time.Time `json:"last_updated" bson:"last_updated"`
}

// Workout is a static training suggestion.
type Workout struct {
	ID          string   `json:"_id" bson:"_id"`
	Name        string   `json:"name" bson:"name"`
	Type        string   `json:"type" bson:"type"`
	Duration    int      `json:"duration" bson:"duration"`
	Difficulty  string   `json:"difficulty" bson:"difficulty"`
	Description string   `json:"description" bson:"description"`
	Exercises   []string `json:"exercises" bson:"exercises"`
}

// DocumentID implements Document.
func (u User) DocumentID() string { return u.ID }

// WithDocumentID implements Document.
func (u User) WithDocumentID(id string) User {
	u.ID = id
	return u
}

// DocumentID implements Document.
func (t Team) DocumentID() string { return t.ID }

// WithDocumentID implements Document.
func (t Team) WithDocumentID(id string) Team {
	t.ID = id
	return t
}

// DocumentID implements Document.
func (a Activity) DocumentID() string { return a.ID }

// WithDocumentID implements Document.
func (a Activity) WithDocumentID(id string) Activity {
	a.ID = id
	return a
}

// DocumentID implements Document.
func (e LeaderboardEntry) DocumentID() string { return e.ID }

// WithDocumentID implements Document.
func (e LeaderboardEntry) WithDocumentID(id string) LeaderboardEntry {
	e.ID = id
	return e
}

// DocumentID implements Document.
func (w Workout) DocumentID() string { return w.ID }

// WithDocumentID implements Document.
func (w Workout) WithDocumentID(id string) Workout {
	w.ID = id
	return w
}
