package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// testDefaults are applied only when the variable is unset so a developer can
// still point tests at real services.
var testDefaults = map[string]string{
	"ASSETDESK_TEST_MODE": "1",
	"JWT_SECRET":          "test-jwt-secret",
	"LICENSE_SECRET":      "test-license-secret",
	"REDIS_ADDR":          "127.0.0.1:0",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range testDefaults {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
