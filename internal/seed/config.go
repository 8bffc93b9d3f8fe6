// Package seed resets a store and fills it with the sample superhero data
// set: ten users in two teams, a random activity log per user, the
// leaderboard computed from it and a handful of workout suggestions.
package seed

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/okian/octofit/pkg/logger"
)

// DefaultPassword is hashed into every seeded user.
const DefaultPassword = "octofit-hero"

// Config controls one seeding run.
type Config struct {
	// Seed feeds the random source. Equal seeds produce equal data sets.
	Seed uint64
	// Password is the plaintext given to every user before hashing.
	Password string
	// BcryptCost is the hashing cost for Password.
	BcryptCost int
	// Now anchors creation times and the 30 day activity window.
	Now func() time.Time
	// Logger receives progress messages.
	Logger logger.Logger
}

func (c *Config) withDefaults() Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.Password == "" {
		out.Password = DefaultPassword
	}
	if out.BcryptCost == 0 {
		out.BcryptCost = bcrypt.DefaultCost
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	if out.Logger == nil {
		out.Logger = logger.Nop()
	}
	return out
}
