package license

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/assetdesk/assetdesk/internal/shared"
)

// memoryRepo mirrors PGRepository semantics, including the single
// transactional activation.
type memoryRepo struct {
	mu      sync.Mutex
	rows    []*License
	nextID  int64
	failErr error
}

func (m *memoryRepo) ActiveLicense(ctx context.Context) (*License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	var active []*License
	for _, row := range m.rows {
		if row.IsActive {
			active = append(active, row)
		}
	}
	if len(active) == 0 {
		return nil, shared.ErrNotFound
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ExpiresAt.After(active[j].ExpiresAt) })
	copied := *active[0]
	return &copied, nil
}

func (m *memoryRepo) Activate(ctx context.Context, key, company string, expiresAt, activatedAt time.Time) (*License, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	for _, row := range m.rows {
		row.IsActive = false
	}
	for _, row := range m.rows {
		if row.Key == key {
			row.Company, row.ExpiresAt, row.ActivatedAt, row.IsActive = company, expiresAt, activatedAt, true
			copied := *row
			return &copied, nil
		}
	}
	m.nextID++
	row := &License{ID: m.nextID, Key: key, Company: company, ExpiresAt: expiresAt, ActivatedAt: activatedAt, IsActive: true}
	m.rows = append(m.rows, row)
	copied := *row
	return &copied, nil
}

func (m *memoryRepo) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, row := range m.rows {
		if row.IsActive {
			n++
		}
	}
	return n
}

var (
	testCipherOnce sync.Once
	testCipher     *Cipher
)

func sharedCipher(t *testing.T) *Cipher {
	t.Helper()
	testCipherOnce.Do(func() {
		c, err := NewCipher("test-license-secret")
		require.NoError(t, err)
		testCipher = c
	})
	return testCipher
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
