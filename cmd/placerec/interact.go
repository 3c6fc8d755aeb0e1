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
	"strings"
	"time"

	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/protocol"
	"github.com/placerec/placerec/storage/data"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var interactCommand = &cobra.Command{
	Use:   "interact KIND USER_ID ITEM_ID",
	Short: "Record an interaction and queue its speed layer update.",
	Long: `Record a review, like, view or share. The interaction is saved to the
data store and the resulting event is dispatched to the task queue, so running
workers apply the boost to the user's recommendations. Use --delete ID to
remove an interaction instead.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if id, _ := cmd.Flags().GetInt64("delete"); id > 0 {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(3)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadConfig(cmd)
		s, _, orchestrator := newEngine(conf)
		defer s.Close()
		ctx := context.Background()
		notifier := protocol.NewNotifier(s.dataClient, protocol.NewDispatcher(orchestrator.Queue), conf.Interaction)

		if id, _ := cmd.Flags().GetInt64("delete"); id > 0 {
			if err := notifier.DeleteInteraction(ctx, id); err != nil {
				log.Logger().Fatal("failed to delete interaction", zap.Int64("id", id), zap.Error(err))
			}
			return
		}
		interaction := &data.Interaction{
			Kind:      data.InteractionKind(strings.ToLower(args[0])),
			UserId:    args[1],
			ItemId:    args[2],
			Timestamp: time.Now(),
		}
		if !lo.Contains(data.InteractionKinds, interaction.Kind) {
			log.Logger().Fatal("unknown interaction kind", zap.String("kind", args[0]))
		}
		if interaction.Kind == data.Review {
			interaction.Rating, _ = cmd.Flags().GetFloat64("rating")
			interaction.Status, _ = cmd.Flags().GetString("status")
		}
		if err := notifier.SaveInteraction(ctx, interaction); err != nil {
			log.Logger().Fatal("failed to save interaction", zap.Error(err))
		}
		fmt.Println(interaction.Id)
	},
}

func init() {
	interactCommand.Flags().Float64("rating", 0, "rating of a review")
	interactCommand.Flags().String("status", data.StatusPublished, "status of a review")
	interactCommand.Flags().Int64("delete", 0, "id of an interaction to delete")
}
