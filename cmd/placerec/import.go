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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/dataset"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCommand = &cobra.Command{
	Use:   "import",
	Short: "Import users, places and interactions from CSV files.",
	Long: `Import CSV files with a header row. Users need user_id and may carry
gender, date_of_birth and last_login. Places need item_id and may carry name,
category, location, description, average_rating, price_range, total_reviews,
visit_count and timestamp. Interactions need kind, user_id and item_id and may
carry rating, status and timestamp.`,
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		s, _, orchestrator := newEngine(conf)
		defer s.Close()
		ctx := context.Background()
		batchSize, _ := cmd.Flags().GetInt("batch-size")

		if path, _ := cmd.Flags().GetString("users"); path != "" {
			users, err := readFile(path, dataset.ReadUsers)
			if err != nil {
				log.Logger().Fatal("failed to read users", zap.String("path", path), zap.Error(err))
			}
			if err = insertBatches(ctx, "Importing users", users, batchSize, s.dataClient.BatchInsertUsers); err != nil {
				log.Logger().Fatal("failed to import users", zap.Error(err))
			}
		}
		if path, _ := cmd.Flags().GetString("items"); path != "" {
			items, err := readFile(path, dataset.ReadItems)
			if err != nil {
				log.Logger().Fatal("failed to read places", zap.String("path", path), zap.Error(err))
			}
			if err = insertBatches(ctx, "Importing places", items, batchSize, s.dataClient.BatchInsertItems); err != nil {
				log.Logger().Fatal("failed to import places", zap.Error(err))
			}
		}
		if path, _ := cmd.Flags().GetString("interactions"); path != "" {
			interactions, err := readFile(path, dataset.ReadInteractions)
			if err != nil {
				log.Logger().Fatal("failed to read interactions", zap.String("path", path), zap.Error(err))
			}
			if err = insertBatches(ctx, "Importing interactions", interactions, batchSize, s.dataClient.BatchInsertInteractions); err != nil {
				log.Logger().Fatal("failed to import interactions", zap.Error(err))
			}
		}

		if noRebuild, _ := cmd.Flags().GetBool("no-rebuild"); !noRebuild {
			outcome, err := orchestrator.RequestGlobalRebuild(ctx)
			if err != nil {
				log.Logger().Fatal("failed to request rebuild", zap.Error(err))
			}
			fmt.Println("rebuild", outcome)
		}
	},
}

func init() {
	importCommand.Flags().String("users", "", "CSV file of users")
	importCommand.Flags().String("items", "", "CSV file of places")
	importCommand.Flags().String("interactions", "", "CSV file of interactions")
	importCommand.Flags().Int("batch-size", 1000, "number of rows per insert")
	importCommand.Flags().Bool("no-rebuild", false, "do not request a rebuild after importing")
}

func readFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer file.Close()
	return read(file)
}

func insertBatches[T any](ctx context.Context, description string, rows []T, batchSize int,
	insert func(context.Context, []T) error) error {
	bar := progressbar.Default(int64(len(rows)), description)
	for begin := 0; begin < len(rows); begin += batchSize {
		end := min(begin+batchSize, len(rows))
		if err := insert(ctx, rows[begin:end]); err != nil {
			return errors.Trace(err)
		}
		_ = bar.Add(end - begin)
	}
	return bar.Finish()
}
