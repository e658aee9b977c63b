package rsql_test

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/luno/jettison/jtest"

	"github.com/luno/repyable/rsql"
)

const cursorsTable = "cursors"

// testDBConfig locates the mysql server used by integration tests.
type testDBConfig struct {
	// URI is a go-sql-driver DSN without a database name, ending in "/".
	URI string `env:"DB_TEST_URI"`
}

func testDBURI(t *testing.T) string {
	t.Helper()

	var c testDBConfig
	jtest.RequireNil(t, env.Parse(&c))
	if c.URI != "" {
		return c.URI
	}

	for _, sock := range []string{"/tmp/mysql.sock", "/var/run/mysqld/mysqld.sock"} {
		if _, err := os.Stat(sock); err == nil {
			return "root@unix(" + sock + ")/"
		}
	}
	t.Skip("Skipping mysql test, set DB_TEST_URI to run it")
	return ""
}

// ConnectTestDB returns a connection to a throwaway database in which the
// provided cursors tables were created. The test is skipped if no mysql
// server is reachable.
func ConnectTestDB(t *testing.T, tables ...rsql.CursorsTable) *sql.DB {
	t.Helper()
	uri := testDBURI(t)

	admin, err := sql.Open("mysql", uri)
	jtest.RequireNil(t, err)
	t.Cleanup(func() { jtest.RequireNil(t, admin.Close()) })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := admin.PingContext(ctx); err != nil {
		t.Skipf("Skipping mysql test, database unreachable: %v", err)
	}

	name := "repyable_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	_, err = admin.ExecContext(ctx, "create database "+name)
	jtest.RequireNil(t, err)
	t.Cleanup(func() {
		_, err := admin.ExecContext(context.Background(), "drop database "+name)
		jtest.RequireNil(t, err)
	})

	dbc, err := sql.Open("mysql", uri+name+"?parseTime=true&loc=UTC&time_zone=%27%2B00%3A00%27")
	jtest.RequireNil(t, err)
	t.Cleanup(func() { jtest.RequireNil(t, dbc.Close()) })
	dbc.SetMaxOpenConns(10)

	for _, table := range tables {
		jtest.RequireNil(t, table.CreateTable(context.Background(), dbc))
	}

	return dbc
}
