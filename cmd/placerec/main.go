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

package main

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/cmd/version"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/engine"
	"github.com/placerec/placerec/logics"
	"github.com/placerec/placerec/master"
	"github.com/placerec/placerec/protocol"
	"github.com/placerec/placerec/storage"
	"github.com/placerec/placerec/storage/cache"
	"github.com/placerec/placerec/storage/data"
	"github.com/placerec/placerec/storage/message"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCommand = &cobra.Command{
	Use:   "placerec",
	Short: "Place recommendation serving and caching core.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)
	},
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
			fmt.Println(version.BuildInfo())
			return
		}
		_ = cmd.Help()
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.Flags().BoolP("version", "v", false, "placerec version")
	rootCommand.AddCommand(serveCommand, rebuildCommand, recommendCommand, similarCommand,
		importCommand, interactCommand, evaluateCommand, versionCommand)
}

func main() {
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute", zap.Error(err))
	}
}

var versionCommand = &cobra.Command{
	Use:   "version",
	Short: "Show build information.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.BuildInfo())
	},
}

func loadConfig(cmd *cobra.Command) *config.Config {
	configPath, _ := cmd.Flags().GetString("config")
	log.Logger().Info("load config", zap.String("config", configPath))
	conf, err := config.LoadConfig(configPath)
	if err != nil {
		log.Logger().Fatal("failed to load config", zap.Error(err))
	}
	return conf
}

// stores bundles the connections every command needs.
type stores struct {
	cacheClient cache.Database
	dataClient  data.Database
	queueClient message.Database
}

func openStores(conf *config.Config) (*stores, error) {
	opts := []storage.Option{
		storage.WithMaxOpenConns(conf.Database.MaxOpenConns),
		storage.WithMaxIdleConns(conf.Database.MaxIdleConns),
		storage.WithConnMaxLifetime(conf.Database.ConnMaxLifetime),
	}
	s := new(stores)
	var err error
	if s.dataClient, err = data.Open(conf.Database.DataStore, conf.Database.TablePrefix, opts...); err != nil {
		return nil, errors.Annotatef(err, "failed to connect data store %s", log.RedactDBURL(conf.Database.DataStore))
	}
	if err = s.dataClient.Init(); err != nil {
		return nil, errors.Annotate(err, "failed to init data store")
	}
	if s.cacheClient, err = cache.Open(conf.Database.CacheStore, conf.Database.TablePrefix); err != nil {
		return nil, errors.Annotatef(err, "failed to connect cache store %s", log.RedactDBURL(conf.Database.CacheStore))
	}
	if s.queueClient, err = message.Open(conf.Database.QueueStore, conf.Database.TablePrefix, opts...); err != nil {
		return nil, errors.Annotatef(err, "failed to connect queue store %s", log.RedactDBURL(conf.Database.QueueStore))
	}
	if err = s.queueClient.Init(); err != nil {
		return nil, errors.Annotate(err, "failed to init queue store")
	}
	log.Logger().Info("connect stores",
		zap.String("data_store", log.RedactDBURL(conf.Database.DataStore)),
		zap.String("cache_store", log.RedactDBURL(conf.Database.CacheStore)),
		zap.String("queue_store", log.RedactDBURL(conf.Database.QueueStore)))
	return s, nil
}

func (s *stores) Close() {
	for name, closer := range map[string]interface{ Close() error }{
		"data store":  s.dataClient,
		"cache store": s.cacheClient,
		"queue store": s.queueClient,
	} {
		if err := closer.Close(); err != nil {
			log.Logger().Error("failed to close "+name, zap.Error(err))
		}
	}
}

// newEngine opens the stores and wires an engine and an orchestrator.
func newEngine(conf *config.Config) (*stores, *engine.Engine, *master.Orchestrator) {
	s, err := openStores(conf)
	if err != nil {
		log.Logger().Fatal("failed to open stores", zap.Error(err))
	}
	extractor, err := logics.NewExtractor(conf.Content)
	if err != nil {
		log.Logger().Fatal("failed to create extractor", zap.Error(err))
	}
	queue := protocol.NewQueue(s.queueClient)
	eng := engine.NewEngine(conf, s.cacheClient, s.dataClient, queue, extractor)
	return s, eng, master.NewOrchestrator(conf, eng, queue)
}
