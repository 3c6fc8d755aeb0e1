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
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
	"moul.io/zapgorm2"
)

const (
	MySQLPrefix         = "mysql://"
	PostgresPrefix      = "postgres://"
	PostgreSQLPrefix    = "postgresql://"
	SQLitePrefix        = "sqlite://"
	RedisPrefix         = "redis://"
	RedissPrefix        = "rediss://"
	RedisClusterPrefix  = "redis+cluster://"
	RedissClusterPrefix = "rediss+cluster://"
	MemoryPrefix        = "memory://"
)

// Scheme identifies the backend behind a store URL.
type Scheme int

const (
	SchemeUnknown Scheme = iota
	SchemeMySQL
	SchemePostgres
	SchemeSQLite
	SchemeRedis
	SchemeRedisCluster
	SchemeMemory
)

var schemePrefixes = []lo.Tuple2[string, Scheme]{
	{A: MySQLPrefix, B: SchemeMySQL},
	{A: PostgresPrefix, B: SchemePostgres},
	{A: PostgreSQLPrefix, B: SchemePostgres},
	{A: SQLitePrefix, B: SchemeSQLite},
	{A: RedisPrefix, B: SchemeRedis},
	{A: RedissPrefix, B: SchemeRedis},
	{A: RedisClusterPrefix, B: SchemeRedisCluster},
	{A: RedissClusterPrefix, B: SchemeRedisCluster},
	{A: MemoryPrefix, B: SchemeMemory},
}

// ParseScheme returns the backend of a store URL, or SchemeUnknown.
func ParseScheme(path string) Scheme {
	for _, prefix := range schemePrefixes {
		if strings.HasPrefix(path, prefix.A) {
			return prefix.B
		}
	}
	return SchemeUnknown
}

func (s Scheme) String() string {
	switch s {
	case SchemeMySQL:
		return "mysql"
	case SchemePostgres:
		return "postgres"
	case SchemeSQLite:
		return "sqlite"
	case SchemeRedis:
		return "redis"
	case SchemeRedisCluster:
		return "redis-cluster"
	case SchemeMemory:
		return "memory"
	default:
		return "unknown"
	}
}

// IsSQL reports whether OpenSQL accepts the scheme.
func (s Scheme) IsSQL() bool {
	return s == SchemeMySQL || s == SchemePostgres || s == SchemeSQLite
}

func AppendURLParams(rawURL string, params []lo.Tuple2[string, string]) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Trace(err)
	}
	q := parsed.Query()
	for _, tuple := range params {
		q.Add(tuple.A, tuple.B)
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// AppendMySQLParams adds parameters to a MySQL DSN unless they are already set.
func AppendMySQLParams(dsn string, params map[string]string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Trace(err)
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]string)
	}
	for key, value := range params {
		if _, exist := cfg.Params[key]; !exist {
			cfg.Params[key] = value
		}
	}
	return cfg.FormatDSN(), nil
}

type TablePrefix string

func (tp TablePrefix) UsersTable() string {
	return string(tp) + "users"
}

func (tp TablePrefix) PlacesTable() string {
	return string(tp) + "places"
}

func (tp TablePrefix) InteractionsTable() string {
	return string(tp) + "interactions"
}

func (tp TablePrefix) MessageTable() string {
	return string(tp) + "message"
}

func (tp TablePrefix) Key(key string) string {
	return string(tp) + key
}

func NewGORMConfig(tablePrefix string) *gorm.Config {
	return &gorm.Config{
		Logger:                 zapgorm2.New(log.Logger()),
		CreateBatchSize:        1000,
		SkipDefaultTransaction: true,
		NamingStrategy: schema.NamingStrategy{
			TablePrefix:   tablePrefix,
			SingularTable: true,
			NameReplacer: strings.NewReplacer(
				"SQLUser", "Users",
				"SQLPlace", "Places",
				"SQLInteraction", "Interactions",
				"SQLMessage", "Message",
			),
		},
	}
}

// NewSQLiteGORMConfig is NewGORMConfig with a quieter logger, since SQLite reports
// busy retries as errors.
func NewSQLiteGORMConfig(tablePrefix string) *gorm.Config {
	gormConfig := NewGORMConfig(tablePrefix)
	gormConfig.Logger = &zapgorm2.Logger{
		ZapLogger:                 log.Logger(),
		LogLevel:                  logger.Warn,
		SlowThreshold:             10 * time.Second,
		SkipCallerLookup:          false,
		IgnoreRecordNotFoundError: true,
	}
	return gormConfig
}
