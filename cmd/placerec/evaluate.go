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
	"slices"
	"strconv"

	"github.com/placerec/placerec/base/log"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var evaluateCommand = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate hybrid recommendations by holding out the last place of each user.",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		s, eng, _ := newEngine(conf)
		defer s.Close()
		k, _ := cmd.Flags().GetInt("top-k")
		result, err := eng.Evaluate(context.Background(), k)
		if err != nil {
			log.Logger().Fatal("failed to evaluate", zap.Error(err))
		}
		metrics := lo.Keys(result)
		slices.Sort(metrics)
		rows := lo.Map(metrics, func(metric string, _ int) []string {
			return []string{metric, strconv.FormatFloat(result[metric], 'f', 4, 64)}
		})
		renderTable([]string{"Metric", "Value@" + strconv.Itoa(k)}, rows)
	},
}

func init() {
	evaluateCommand.Flags().IntP("top-k", "k", 10, "length of recommendation lists")
}
