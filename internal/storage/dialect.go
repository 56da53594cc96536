package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// dialect captures the differences between the SQL backends.
type dialect interface {
	name() string
	// rebind converts ? placeholders to the backend's style.
	rebind(query string) string
	stringsArg(v []string) (any, error)
	stringsDest(dst *[]string) any
	isUniqueViolation(err error) bool
	schema() []string
}

func dialectFor(driverName string) (dialect, error) {
	switch driverName {
	case DriverPostgres:
		return postgresDialect{}, nil
	case DriverSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driverName)
	}
}

type postgresDialect struct{}

func (postgresDialect) name() string { return DriverPostgres }

func (postgresDialect) rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (postgresDialect) stringsArg(v []string) (any, error) {
	if v == nil {
		v = []string{}
	}
	return pq.Array(v), nil
}

func (postgresDialect) stringsDest(dst *[]string) any { return pq.Array(dst) }

func (postgresDialect) isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "duplicate")
}

type sqliteDialect struct{}

func (sqliteDialect) name() string              { return DriverSQLite }
func (sqliteDialect) rebind(query string) string { return query }

func (sqliteDialect) stringsArg(v []string) (any, error) {
	if v == nil {
		v = []string{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (sqliteDialect) stringsDest(dst *[]string) any { return &jsonStrings{dst: dst} }

func (sqliteDialect) isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// jsonStrings scans a JSON array column into a []string.
type jsonStrings struct {
	dst *[]string
}

func (j *jsonStrings) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*j.dst = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("unsupported type %T for string list", src)
	}
	if len(data) == 0 {
		*j.dst = nil
		return nil
	}
	return json.Unmarshal(data, j.dst)
}

var _ sql.Scanner = (*jsonStrings)(nil)
