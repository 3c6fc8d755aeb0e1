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
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/storage/cache"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var recommendCommand = &cobra.Command{
	Use:   "recommend USER_ID",
	Short: "Show the recommendations served to a user.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		s, eng, _ := newEngine(conf)
		defer s.Close()
		n, _ := cmd.Flags().GetInt("n")
		if n <= 0 {
			n = conf.Serve.DefaultN
		}
		renderScores(eng.Recommend(context.Background(), args[0], n))
	},
}

var similarCommand = &cobra.Command{
	Use:   "similar ITEM_ID",
	Short: "Show places similar to a place.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		s, eng, _ := newEngine(conf)
		defer s.Close()
		renderScores(eng.SimilarTo(context.Background(), args[0]))
	},
}

func init() {
	recommendCommand.Flags().IntP("n", "n", 0, "number of places (defaults to serve.default_n)")
}

func renderScores(scores []cache.Score) {
	rows := make([][]string, len(scores))
	for i, score := range scores {
		rows[i] = []string{strconv.Itoa(i + 1), score.Id, strconv.FormatFloat(score.Score, 'f', 6, 64)}
	}
	renderTable([]string{"Rank", "Place", "Score"}, rows)
}

func renderTable(header []string, rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header(lo.ToAnySlice(header)...)
	if err := table.Bulk(rows); err != nil {
		log.Logger().Fatal("failed to render table", zap.Error(err))
	}
	if err := table.Render(); err != nil {
		log.Logger().Fatal("failed to render table", zap.Error(err))
	}
}
