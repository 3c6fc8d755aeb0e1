// Copyright 2025 placerec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"database/sql"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	_ "github.com/lib/pq"
	"github.com/samber/lo"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"
)

var sqlitePragmas = []lo.Tuple2[string, string]{
	{A: "_pragma", B: "busy_timeout(10000)"},
	{A: "_pragma", B: "journal_mode(wal)"},
}

// SQLConn is an instrumented connection pool and the GORM session on top of it.
type SQLConn struct {
	Scheme Scheme
	Client *sql.DB
	GORM   *gorm.DB
}

// OpenSQL connects to a MySQL, Postgres or SQLite URL. Table names of the
// GORM session carry tablePrefix.
func OpenSQL(path, tablePrefix string, opt Options) (*SQLConn, error) {
	var (
		conn     = &SQLConn{Scheme: ParseScheme(path)}
		driver   string
		dsn      string
		err      error
		dialect  func(*sql.DB) gorm.Dialector
		gormConf = NewGORMConfig(tablePrefix)
	)
	switch conn.Scheme {
	case SchemeMySQL:
		driver = "mysql"
		if dsn, err = AppendMySQLParams(path[len(MySQLPrefix):], opt.MySQLParams); err != nil {
			return nil, errors.Trace(err)
		}
		dialect = func(db *sql.DB) gorm.Dialector { return mysql.New(mysql.Config{Conn: db}) }
	case SchemePostgres:
		driver, dsn = "postgres", path
		dialect = func(db *sql.DB) gorm.Dialector { return postgres.New(postgres.Config{Conn: db}) }
	case SchemeSQLite:
		driver = "sqlite"
		if dsn, err = AppendURLParams(path, sqlitePragmas); err != nil {
			return nil, errors.Trace(err)
		}
		dsn = dsn[len(SQLitePrefix):]
		dialect = func(db *sql.DB) gorm.Dialector { return sqlite.Dialector{Conn: db} }
		gormConf = NewSQLiteGORMConfig(tablePrefix)
	default:
		return nil, errors.NotSupportedf("SQL store %q", conn.Scheme)
	}
	if conn.Client, err = otelsql.Open(driver, dsn,
		otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}),
	); err != nil {
		return nil, errors.Trace(err)
	}
	opt.applyPool(conn.Client)
	if conn.GORM, err = gorm.Open(dialect(conn.Client), gormConf); err != nil {
		return nil, errors.Trace(err)
	}
	return conn, nil
}
