// Package identity generates the per-session anonymous id. Ids are never
// persisted; every process start yields a new one.
package identity

import (
	"fmt"
	"strconv"
	"time"

	"github.com/teris-io/shortid"
)

const prefix = "user_"

type Generator struct {
	now  func() time.Time
	rand func() (string, error)
}

func NewGenerator() *Generator {
	return &Generator{
		now:  time.Now,
		rand: shortid.Generate,
	}
}

// New returns an id of the form user_<base36 millis>_<shortid>.
func (g *Generator) New() (string, error) {
	sid, err := g.rand()
	if err != nil {
		return "", fmt.Errorf("generate short id: %w", err)
	}

	ts := strconv.FormatInt(g.now().UnixMilli(), 36)
	return prefix + ts + "_" + sid, nil
}

// New generates an id with the default generator.
func New() (string, error) {
	return NewGenerator().New()
}
