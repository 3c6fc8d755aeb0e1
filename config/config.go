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

package config

import (
	"runtime"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

// Config is the configuration for placerec. It is loaded once at startup and
// passed to every component.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Interaction   InteractionConfig   `mapstructure:"interaction"`
	Hybrid        HybridConfig        `mapstructure:"hybrid"`
	Popularity    PopularityConfig    `mapstructure:"popularity"`
	Collaborative CollaborativeConfig `mapstructure:"collaborative"`
	Content       ContentConfig       `mapstructure:"content"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Lock          LockConfig          `mapstructure:"lock"`
	Rebuild       RebuildConfig       `mapstructure:"rebuild"`
	Worker        WorkerConfig        `mapstructure:"worker"`
	Serve         ServeConfig         `mapstructure:"serve"`
}

// DatabaseConfig is the configuration for the stores.
type DatabaseConfig struct {
	CacheStore  string `mapstructure:"cache_store" validate:"required"`
	DataStore   string `mapstructure:"data_store" validate:"required"`
	QueueStore  string `mapstructure:"queue_store" validate:"required"`
	TablePrefix string `mapstructure:"table_prefix"`

	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// InteractionConfig maps raw interactions to scores.
type InteractionConfig struct {
	ReviewMax   float64 `mapstructure:"review_max" validate:"gt=0"`
	LikeWeight  float64 `mapstructure:"like_weight" validate:"gte=0"`
	ViewWeight  float64 `mapstructure:"view_weight" validate:"gte=0"`
	ShareWeight float64 `mapstructure:"share_weight" validate:"gte=0"`
}

// Weights is the (user-based, content, popularity) weight triple.
type Weights struct {
	UserBased  float64 `mapstructure:"user_based" validate:"gte=0"`
	Content    float64 `mapstructure:"content" validate:"gte=0"`
	Popularity float64 `mapstructure:"popularity" validate:"gte=0"`
}

type HybridConfig struct {
	LowThreshold    int     `mapstructure:"low_threshold" validate:"gte=0"`
	MediumThreshold int     `mapstructure:"medium_threshold" validate:"gtefield=LowThreshold"`
	LowWeights      Weights `mapstructure:"low_weights"`
	MediumWeights   Weights `mapstructure:"medium_weights"`
	HighWeights     Weights `mapstructure:"high_weights"`
	DecayAlpha      float64 `mapstructure:"decay_alpha" validate:"gt=0,lt=1"`
	CandidateSize   int     `mapstructure:"candidate_size" validate:"gt=0"`
}

type PopularityConfig struct {
	Rating  float64 `mapstructure:"rating" validate:"gte=0"`
	Reviews float64 `mapstructure:"reviews" validate:"gte=0"`
	Visits  float64 `mapstructure:"visits" validate:"gte=0"`
	Likes   float64 `mapstructure:"likes" validate:"gte=0"`
	Shares  float64 `mapstructure:"shares" validate:"gte=0"`
}

type CollaborativeConfig struct {
	ChunkSize     int     `mapstructure:"chunk_size" validate:"gt=0"`
	BlockSize     int     `mapstructure:"block_size" validate:"gt=0"`
	MinNeighbors  int     `mapstructure:"min_neighbors" validate:"gt=0"`
	NeighborRatio float64 `mapstructure:"neighbor_ratio" validate:"gte=0,lte=1"`
	NumJobs       int     `mapstructure:"num_jobs" validate:"gt=0"`
}

type ContentConfig struct {
	NumSimilar int          `mapstructure:"num_similar" validate:"gt=0"`
	Extractor  string       `mapstructure:"extractor" validate:"oneof=local openai"`
	Dimension  int          `mapstructure:"dimension" validate:"gt=0"`
	OpenAI     OpenAIConfig `mapstructure:"openai"`
}

type OpenAIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	AuthToken      string `mapstructure:"auth_token"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	EmbeddingRPM   int    `mapstructure:"embedding_rpm" validate:"gte=0"`
	EmbeddingTPM   int    `mapstructure:"embedding_tpm" validate:"gte=0"`
}

// CacheConfig holds the lifetimes of cached artifacts.
type CacheConfig struct {
	ArtifactTTL     time.Duration `mapstructure:"artifact_ttl" validate:"gte=0"`
	SimilarItemsTTL time.Duration `mapstructure:"similar_items_ttl" validate:"gte=0"`
	InteractedTTL   time.Duration `mapstructure:"interacted_ttl" validate:"gte=0"`
	BatchTTL        time.Duration `mapstructure:"batch_ttl" validate:"gte=0"`
	BoostTTL        time.Duration `mapstructure:"boost_ttl" validate:"gt=0"`
	BoostFraction   float64       `mapstructure:"boost_fraction" validate:"gte=0"`
}

// LockConfig configures the per-artifact build lock. MaxRetries 0 retries until
// the context is done.
type LockConfig struct {
	TTL           time.Duration `mapstructure:"ttl" validate:"gt=0"`
	RetryInterval time.Duration `mapstructure:"retry_interval" validate:"gt=0"`
	MaxRetries    uint          `mapstructure:"max_retries"`
}

type RebuildConfig struct {
	GlobalLockTTL  time.Duration `mapstructure:"global_lock_ttl" validate:"gt=0"`
	RetryDelay     time.Duration `mapstructure:"retry_delay" validate:"gt=0"`
	CoalesceWindow time.Duration `mapstructure:"coalesce_window" validate:"gte=0"`
	RebuildPeriod  time.Duration `mapstructure:"rebuild_period" validate:"gt=0"`
	BatchPeriod    time.Duration `mapstructure:"batch_period" validate:"gt=0"`
	ActiveWindow   time.Duration `mapstructure:"active_window" validate:"gt=0"`
}

type WorkerConfig struct {
	NumJobs       int           `mapstructure:"num_jobs" validate:"gt=0"`
	PollInterval  time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	MaxAttempts   uint          `mapstructure:"max_attempts" validate:"gt=0"`
	RetryInterval time.Duration `mapstructure:"retry_interval" validate:"gte=0"`
}

type ServeConfig struct {
	DefaultN int `mapstructure:"default_n" validate:"gt=0"`
	// BatchRequestTTL is the minimum interval between two batch requests of a user.
	BatchRequestTTL time.Duration `mapstructure:"batch_request_ttl" validate:"gt=0"`
	MetricsHost     string        `mapstructure:"metrics_host"`
	MetricsPort     int           `mapstructure:"metrics_port" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			CacheStore: "memory://",
			DataStore:  "sqlite://placerec.db",
			QueueStore: "sqlite://placerec_queue.db",
		},
		Interaction: InteractionConfig{
			ReviewMax:   5,
			LikeWeight:  0.6,
			ViewWeight:  0.3,
			ShareWeight: 0.7,
		},
		Hybrid: HybridConfig{
			LowThreshold:    50,
			MediumThreshold: 200,
			LowWeights:      Weights{UserBased: 0.1, Content: 0.3, Popularity: 0.6},
			MediumWeights:   Weights{UserBased: 0.3, Content: 0.4, Popularity: 0.3},
			HighWeights:     Weights{UserBased: 0.6, Content: 0.4, Popularity: 0},
			DecayAlpha:      0.99,
			CandidateSize:   50,
		},
		Popularity: PopularityConfig{
			Rating:  0.3,
			Reviews: 0.2,
			Visits:  0.1,
			Likes:   0.2,
			Shares:  0.2,
		},
		Collaborative: CollaborativeConfig{
			ChunkSize:     2000,
			BlockSize:     500,
			MinNeighbors:  10,
			NeighborRatio: 0.1,
			NumJobs:       runtime.NumCPU(),
		},
		Content: ContentConfig{
			NumSimilar: 5,
			Extractor:  "local",
			Dimension:  64,
			OpenAI: OpenAIConfig{
				EmbeddingModel: "text-embedding-3-small",
			},
		},
		Cache: CacheConfig{
			ArtifactTTL:     2 * time.Hour,
			SimilarItemsTTL: 6 * time.Hour,
			InteractedTTL:   3 * time.Hour,
			BatchTTL:        2 * time.Hour,
			BoostTTL:        24 * time.Hour,
			BoostFraction:   0.1,
		},
		Lock: LockConfig{
			TTL:           10 * time.Minute,
			RetryInterval: 5 * time.Second,
		},
		Rebuild: RebuildConfig{
			GlobalLockTTL:  10 * time.Minute,
			RetryDelay:     10 * time.Second,
			CoalesceWindow: time.Minute,
			RebuildPeriod:  30 * time.Minute,
			BatchPeriod:    6 * time.Hour,
			ActiveWindow:   7 * 24 * time.Hour,
		},
		Worker: WorkerConfig{
			NumJobs:       1,
			PollInterval:  time.Second,
			MaxAttempts:   3,
			RetryInterval: time.Second,
		},
		Serve: ServeConfig{
			DefaultN:        10,
			BatchRequestTTL: time.Minute,
			MetricsHost:     "0.0.0.0",
			MetricsPort:     8089,
		},
	}
}

// Weights returns the base weight triple for a user with n interactions.
func (config *HybridConfig) Weights(n int) Weights {
	if n < config.LowThreshold {
		return config.LowWeights
	} else if n < config.MediumThreshold {
		return config.MediumWeights
	}
	return config.HighWeights
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.cache_store", defaultConfig.Database.CacheStore)
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.queue_store", defaultConfig.Database.QueueStore)
	v.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	v.SetDefault("database.max_open_conns", defaultConfig.Database.MaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultConfig.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", defaultConfig.Database.ConnMaxLifetime)
	// [interaction]
	v.SetDefault("interaction.review_max", defaultConfig.Interaction.ReviewMax)
	v.SetDefault("interaction.like_weight", defaultConfig.Interaction.LikeWeight)
	v.SetDefault("interaction.view_weight", defaultConfig.Interaction.ViewWeight)
	v.SetDefault("interaction.share_weight", defaultConfig.Interaction.ShareWeight)
	// [hybrid]
	v.SetDefault("hybrid.low_threshold", defaultConfig.Hybrid.LowThreshold)
	v.SetDefault("hybrid.medium_threshold", defaultConfig.Hybrid.MediumThreshold)
	for name, w := range map[string]Weights{
		"low_weights":    defaultConfig.Hybrid.LowWeights,
		"medium_weights": defaultConfig.Hybrid.MediumWeights,
		"high_weights":   defaultConfig.Hybrid.HighWeights,
	} {
		v.SetDefault("hybrid."+name+".user_based", w.UserBased)
		v.SetDefault("hybrid."+name+".content", w.Content)
		v.SetDefault("hybrid."+name+".popularity", w.Popularity)
	}
	v.SetDefault("hybrid.decay_alpha", defaultConfig.Hybrid.DecayAlpha)
	v.SetDefault("hybrid.candidate_size", defaultConfig.Hybrid.CandidateSize)
	// [popularity]
	v.SetDefault("popularity.rating", defaultConfig.Popularity.Rating)
	v.SetDefault("popularity.reviews", defaultConfig.Popularity.Reviews)
	v.SetDefault("popularity.visits", defaultConfig.Popularity.Visits)
	v.SetDefault("popularity.likes", defaultConfig.Popularity.Likes)
	v.SetDefault("popularity.shares", defaultConfig.Popularity.Shares)
	// [collaborative]
	v.SetDefault("collaborative.chunk_size", defaultConfig.Collaborative.ChunkSize)
	v.SetDefault("collaborative.block_size", defaultConfig.Collaborative.BlockSize)
	v.SetDefault("collaborative.min_neighbors", defaultConfig.Collaborative.MinNeighbors)
	v.SetDefault("collaborative.neighbor_ratio", defaultConfig.Collaborative.NeighborRatio)
	v.SetDefault("collaborative.num_jobs", defaultConfig.Collaborative.NumJobs)
	// [content]
	v.SetDefault("content.num_similar", defaultConfig.Content.NumSimilar)
	v.SetDefault("content.extractor", defaultConfig.Content.Extractor)
	v.SetDefault("content.dimension", defaultConfig.Content.Dimension)
	v.SetDefault("content.openai.base_url", defaultConfig.Content.OpenAI.BaseURL)
	v.SetDefault("content.openai.auth_token", defaultConfig.Content.OpenAI.AuthToken)
	v.SetDefault("content.openai.embedding_model", defaultConfig.Content.OpenAI.EmbeddingModel)
	v.SetDefault("content.openai.embedding_rpm", defaultConfig.Content.OpenAI.EmbeddingRPM)
	v.SetDefault("content.openai.embedding_tpm", defaultConfig.Content.OpenAI.EmbeddingTPM)
	// [cache]
	v.SetDefault("cache.artifact_ttl", defaultConfig.Cache.ArtifactTTL)
	v.SetDefault("cache.similar_items_ttl", defaultConfig.Cache.SimilarItemsTTL)
	v.SetDefault("cache.interacted_ttl", defaultConfig.Cache.InteractedTTL)
	v.SetDefault("cache.batch_ttl", defaultConfig.Cache.BatchTTL)
	v.SetDefault("cache.boost_ttl", defaultConfig.Cache.BoostTTL)
	v.SetDefault("cache.boost_fraction", defaultConfig.Cache.BoostFraction)
	// [lock]
	v.SetDefault("lock.ttl", defaultConfig.Lock.TTL)
	v.SetDefault("lock.retry_interval", defaultConfig.Lock.RetryInterval)
	v.SetDefault("lock.max_retries", defaultConfig.Lock.MaxRetries)
	// [rebuild]
	v.SetDefault("rebuild.global_lock_ttl", defaultConfig.Rebuild.GlobalLockTTL)
	v.SetDefault("rebuild.retry_delay", defaultConfig.Rebuild.RetryDelay)
	v.SetDefault("rebuild.coalesce_window", defaultConfig.Rebuild.CoalesceWindow)
	v.SetDefault("rebuild.rebuild_period", defaultConfig.Rebuild.RebuildPeriod)
	v.SetDefault("rebuild.batch_period", defaultConfig.Rebuild.BatchPeriod)
	v.SetDefault("rebuild.active_window", defaultConfig.Rebuild.ActiveWindow)
	// [worker]
	v.SetDefault("worker.num_jobs", defaultConfig.Worker.NumJobs)
	v.SetDefault("worker.poll_interval", defaultConfig.Worker.PollInterval)
	v.SetDefault("worker.max_attempts", defaultConfig.Worker.MaxAttempts)
	v.SetDefault("worker.retry_interval", defaultConfig.Worker.RetryInterval)
	// [serve]
	v.SetDefault("serve.default_n", defaultConfig.Serve.DefaultN)
	v.SetDefault("serve.batch_request_ttl", defaultConfig.Serve.BatchRequestTTL)
	v.SetDefault("serve.metrics_host", defaultConfig.Serve.MetricsHost)
	v.SetDefault("serve.metrics_port", defaultConfig.Serve.MetricsPort)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"database.cache_store", "PLACEREC_CACHE_STORE"},
	{"database.data_store", "PLACEREC_DATA_STORE"},
	{"database.queue_store", "PLACEREC_QUEUE_STORE"},
	{"database.table_prefix", "PLACEREC_TABLE_PREFIX"},
	{"content.openai.base_url", "PLACEREC_OPENAI_BASE_URL"},
	{"content.openai.auth_token", "PLACEREC_OPENAI_AUTH_TOKEN"},
	{"worker.num_jobs", "PLACEREC_WORKER_JOBS"},
	{"serve.metrics_port", "PLACEREC_METRICS_PORT"},
}

func unmarshal(v *viper.Viper, config *Config) error {
	return v.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
}

// LoadConfig loads configuration from a TOML file. An empty path yields the
// defaults overridden by environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return nil, errors.Trace(err)
		}
	}
	if path != "" {
		v.SetConfigType("toml")
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var config Config
	if err := unmarshal(v, &config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}
