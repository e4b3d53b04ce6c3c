package race

import (
	"time"
)

// Config is passed to the New() constructor. Zero values are replaced with defaults.
type Config struct {
	Fanout         int           // Race this many of the highest scoring servers
	AttemptTimeout time.Duration // Each attempt fails if it takes longer than this
	UserAgent      string        // Sent with every upstream request
}
