package seed

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/okian/octofit/internal/domain/model"
)

// Activity generation ranges, inclusive.
const (
	minActivitiesPerUser = 5
	maxActivitiesPerUser = 10
	minDuration          = 15
	maxDuration          = 120
	minCalories          = 100
	maxCalories          = 800
	minDistance          = 1.0
	maxDistance          = 20.0
	maxAgeDays           = 30
	distancePlaces       = 2
)

const (
	teamMarvel = "Team Marvel"
	teamDC     = "Team DC"
)

// ActivityTypes are the activity kinds the generator draws from.
var ActivityTypes = []string{"running", "cycling", "swimming", "gym", "yoga", "walking"}

// distanceTypes are the activity kinds that cover ground.
var distanceTypes = []string{"running", "cycling", "walking"}

type hero struct {
	name  string
	email string
	team  string
}

var heroes = []hero{
	{"Iron Man", "tony.stark@marvel.com", teamMarvel},
	{"Captain America", "steve.rogers@marvel.com", teamMarvel},
	{"Thor", "thor.odinson@marvel.com", teamMarvel},
	{"Black Widow", "natasha.romanoff@marvel.com", teamMarvel},
	{"Hulk", "bruce.banner@marvel.com", teamMarvel},
	{"Batman", "bruce.wayne@dc.com", teamDC},
	{"Superman", "clark.kent@dc.com", teamDC},
	{"Wonder Woman", "diana.prince@dc.com", teamDC},
	{"Flash", "barry.allen@dc.com", teamDC},
	{"Aquaman", "arthur.curry@dc.com", teamDC},
}

var teamDescriptions = map[string]string{
	teamMarvel: "Earth's Mightiest Heroes",
	teamDC:     "Justice League",
}

// Users returns the hero roster with the given password hash.
func Users(hash string, now time.Time) []model.User {
	out := make([]model.User, 0, len(heroes))
	for _, h := range heroes {
		out = append(out, model.User{Name: h.name, Email: h.email, Password: hash, Team: h.team, CreatedAt: now})
	}
	return out
}

// Teams groups stored users by their team name, Marvel first.
func Teams(users []model.User, now time.Time) []model.Team {
	out := make([]model.Team, 0, len(teamDescriptions))
	for _, name := range []string{teamMarvel, teamDC} {
		members := []string{}
		for _, u := range users {
			if u.Team == name {
				members = append(members, u.ID)
			}
		}
		out = append(out, model.Team{Name: name, Description: teamDescriptions[name], Members: members, CreatedAt: now})
	}
	return out
}

// Generator draws random activities from a seeded source.
type Generator struct {
	rng *rand.Rand
	now time.Time
}

// NewGenerator returns a Generator whose output depends only on seed and now.
func NewGenerator(seed uint64, now time.Time) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now: now}
}

// between returns a uniform int in [lo, hi].
func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

// Activities returns between 5 and 10 activities for each user, in user order.
func (g *Generator) Activities(users []model.User) []model.Activity {
	var out []model.Activity
	for _, u := range users {
		n := g.between(minActivitiesPerUser, maxActivitiesPerUser)
		for range n {
			out = append(out, g.activity(u.ID))
		}
	}
	return out
}

func (g *Generator) activity(userID string) model.Activity {
	kind := ActivityTypes[g.rng.IntN(len(ActivityTypes))]
	a := model.Activity{
		UserID:   userID,
		Type:     kind,
		Duration: g.between(minDuration, maxDuration),
		Calories: g.between(minCalories, maxCalories),
		Date:     g.now.AddDate(0, 0, -g.between(0, maxAgeDays)),
		Notes:    fmt.Sprintf("Great %s session!", kind),
	}
	if slices.Contains(distanceTypes, kind) {
		raw := minDistance + g.rng.Float64()*(maxDistance-minDistance)
		a.Distance, _ = decimal.NewFromFloat(raw).Round(distancePlaces).Float64()
	}
	return a
}

// Workouts returns the fixed workout suggestions.
func Workouts() []model.Workout {
	return []model.Workout{
		{
			Name: "Superhero Strength Training", Type: "gym", Duration: 60, Difficulty: "advanced",
			Description: "High-intensity strength training for superhero-level power",
			Exercises:   []string{"bench press", "squats", "deadlifts", "pull-ups"},
		},
		{
			Name: "Speedster Cardio", Type: "running", Duration: 30, Difficulty: "intermediate",
			Description: "Speed training for enhanced endurance",
			Exercises:   []string{"sprint intervals", "hill runs", "tempo runs"},
		},
		{
			Name: "Warrior Flexibility", Type: "yoga", Duration: 45, Difficulty: "beginner",
			Description: "Flexibility and balance training",
			Exercises:   []string{"warrior pose", "downward dog", "tree pose", "meditation"},
		},
		{
			Name: "Aquatic Power", Type: "swimming", Duration: 45, Difficulty: "intermediate",
			Description: "Swimming workout for full-body strength",
			Exercises:   []string{"freestyle", "backstroke", "butterfly", "diving"},
		},
		{
			Name: "City Patrol Cycling", Type: "cycling", Duration: 90, Difficulty: "intermediate",
			Description: "Endurance cycling for city heroes",
			Exercises:   []string{"hill climbs", "sprint intervals", "long distance"},
		},
	}
}
