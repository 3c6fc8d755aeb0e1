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
	"maps"
	"time"
)

// Options configures SQL connections. Zero pool limits keep the driver defaults.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// MySQLParams are appended to MySQL DSNs unless the DSN already sets them.
	MySQLParams map[string]string
}

type Option func(*Options)

func WithMaxOpenConns(n int) Option {
	return func(o *Options) { o.MaxOpenConns = n }
}

func WithMaxIdleConns(n int) Option {
	return func(o *Options) { o.MaxIdleConns = n }
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(o *Options) { o.ConnMaxLifetime = d }
}

// WithMySQLParams merges params into the MySQL parameters. Later options win.
func WithMySQLParams(params map[string]string) Option {
	return func(o *Options) {
		if o.MySQLParams == nil {
			o.MySQLParams = make(map[string]string, len(params))
		}
		maps.Copy(o.MySQLParams, params)
	}
}

// NewOptions applies opts on top of the defaults. Timestamps are always
// scanned into time.Time.
func NewOptions(opts ...Option) Options {
	opt := Options{MySQLParams: map[string]string{"parseTime": "true"}}
	for _, o := range opts {
		o(&opt)
	}
	return opt
}

func (opt Options) applyPool(db *sql.DB) {
	if opt.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opt.MaxOpenConns)
	}
	if opt.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opt.MaxIdleConns)
	}
	if opt.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opt.ConnMaxLifetime)
	}
}
