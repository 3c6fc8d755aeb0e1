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
	"time"

	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/master"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rebuildCommand = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild every cached artifact.",
	Long: `Rebuild cleaned data, collaborative filtering data, item profiles and
popularity in place. With --request a coalesced rebuild is queued for the
workers instead.`,
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		s, eng, orchestrator := newEngine(conf)
		defer s.Close()
		ctx := context.Background()

		if request, _ := cmd.Flags().GetBool("request"); request {
			outcome, err := orchestrator.RequestGlobalRebuild(ctx)
			if err != nil {
				log.Logger().Fatal("failed to request rebuild", zap.Error(err))
			}
			fmt.Println("rebuild", outcome)
			return
		}
		if err := orchestrator.RebuildAll(ctx); err != nil {
			log.Logger().Fatal("failed to rebuild", zap.Error(err))
		}
		if batch, _ := cmd.Flags().GetBool("batch"); batch {
			if err := eng.GenerateBatch(ctx, orchestrator.TaskMonitor.NewTaskTracker(master.TaskGenerateBatch)); err != nil {
				log.Logger().Fatal("failed to generate batch recommendations", zap.Error(err))
			}
		}
		var rows [][]string
		for _, task := range orchestrator.TaskMonitor.List() {
			rows = append(rows, []string{task.Name, task.Status,
				task.FinishTime.Sub(task.StartTime).Round(time.Millisecond).String(), task.Error})
		}
		renderTable([]string{"Step", "Status", "Time", "Error"}, rows)
	},
}

func init() {
	rebuildCommand.Flags().Bool("request", false, "queue a coalesced rebuild request")
	rebuildCommand.Flags().Bool("batch", false, "generate batch recommendations of active users afterwards")
}
