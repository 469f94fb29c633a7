package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type directoryUser struct {
	id      int64
	role    string
	active  bool
	sectors []int64
}

// userTable answers the directory queries by evaluating them against an
// in-memory users table, so the filter each query encodes is exercised.
type userTable struct {
	users   []directoryUser
	queries []string
	args    [][]any
	err     error
}

func (u *userTable) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	u.queries = append(u.queries, sql)
	u.args = append(u.args, args)
	if u.err != nil {
		return nil, u.err
	}
	var ids []int64
	switch sql {
	case sectorTechniciansQuery:
		sector := args[0].(int64)
		for _, usr := range u.users {
			if usr.active && usr.role == "technician" && bound(usr, sector) {
				ids = append(ids, usr.id)
			}
		}
	case activeAdminsQuery:
		for _, usr := range u.users {
			if usr.active && usr.role == "admin" {
				ids = append(ids, usr.id)
			}
		}
	default:
		return nil, fmt.Errorf("unexpected query %q", sql)
	}
	return &idRows{ids: ids, pos: -1}, nil
}

func bound(u directoryUser, sector int64) bool {
	for _, s := range u.sectors {
		if s == sector {
			return true
		}
	}
	return false
}

type idRows struct {
	ids []int64
	pos int
}

func (r *idRows) Close()                                       {}
func (r *idRows) Err() error                                   { return nil }
func (r *idRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *idRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *idRows) Next() bool {
	r.pos++
	return r.pos < len(r.ids)
}
func (r *idRows) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.ids[r.pos]
	return nil
}
func (r *idRows) Values() ([]any, error) { return []any{r.ids[r.pos]}, nil }
func (r *idRows) RawValues() [][]byte    { return nil }
func (r *idRows) Conn() *pgx.Conn        { return nil }

func TestSectorTechniciansQueryFiltersRoleActivityAndBinding(t *testing.T) {
	assert.Contains(t, sectorTechniciansQuery, "ts.sector_id = $1")
	assert.Contains(t, sectorTechniciansQuery, "u.is_active")
	assert.Contains(t, sectorTechniciansQuery, "u.role = 'technician'")
	assert.Contains(t, activeAdminsQuery, "is_active")
	assert.Contains(t, activeAdminsQuery, "role = 'admin'")
}

func TestPGDirectorySectorTechnicians(t *testing.T) {
	table := &userTable{users: []directoryUser{
		{id: 1, role: "technician", active: true, sectors: []int64{10}},
		{id: 2, role: "technician", active: true, sectors: []int64{10, 20}},
		{id: 3, role: "technician", active: true, sectors: []int64{20}},
		{id: 4, role: "technician", active: false, sectors: []int64{10}},
		{id: 5, role: "user", active: true, sectors: []int64{10}},
		{id: 6, role: "admin", active: true},
	}}
	dir := &PGDirectory{db: table}

	ids, err := dir.SectorTechnicians(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	assert.Equal(t, []any{int64(10)}, table.args[0])

	admins, err := dir.ActiveAdmins(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{6}, admins)
}

func TestPGDirectoryQueryError(t *testing.T) {
	dir := &PGDirectory{db: &userTable{err: errors.New("db down")}}
	_, err := dir.SectorTechnicians(context.Background(), 1)
	assert.Error(t, err)
}
