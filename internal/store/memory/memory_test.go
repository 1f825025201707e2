package memory_test

import (
	"testing"

	"github.com/dropDatabas3/accountd/internal/store/memory"
	"github.com/dropDatabas3/accountd/internal/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Repos {
		s := memory.New()
		return storetest.Repos{
			Users:          s.Users(),
			TwoFactor:      s.TwoFactor(),
			Passkeys:       s.Passkeys(),
			PasswordResets: s.PasswordResets(),
		}
	})
}
