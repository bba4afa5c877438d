package handler

import (
	"sync"

	"github.com/iliyamo/studentdesk/internal/utils"
)

// timingGuard burns one bcrypt comparison for identifiers that do not
// exist, so a miss takes as long as a wrong password.
type timingGuard struct {
	once sync.Once
	cost int
	hash string
}

func (g *timingGuard) compare(plain string) {
	g.once.Do(func() {
		g.hash, _ = utils.HashPassword("studentdesk timing guard", g.cost)
	})
	_ = utils.VerifyPassword(g.hash, plain)
}
