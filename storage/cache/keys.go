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

package cache

import "fmt"

const (
	CleanedDataKey       = "cleaned_data_all_v4"
	CollaborativeDataKey = "user_collaborative_filtering_data_v1"
	ItemProfilesKey      = "scaled_item_profiles_v3"
	PopularityKey        = "popularity_recs_v1"
	GlobalRebuildLockKey = "global_rebuild_lock"
)

// SimilarItemsKey stores the content-similar places of a place.
func SimilarItemsKey(itemId string) string {
	return fmt.Sprintf("similar_to:%s_v1", itemId)
}

// BatchRecommendKey stores the precomputed batch list of a user.
func BatchRecommendKey(userId string) string {
	return fmt.Sprintf("batch_recs_%s_v1", userId)
}

// BatchRequestKey marks a pending generate_user_batch request of a user.
func BatchRequestKey(userId string) string {
	return fmt.Sprintf("batch_request_%s", userId)
}

// BoostScoresKey stores the speed-layer score deltas of a user.
func BoostScoresKey(userId string) string {
	return fmt.Sprintf("user:%s:boost_scores", userId)
}

// InteractedItemsKey stores the set of places a user has interacted with.
func InteractedItemsKey(userId string) string {
	return fmt.Sprintf("user_interacted_places_%s_v2", userId)
}

// LockKey is the key of the build lock guarding an artifact key.
func LockKey(key string) string {
	return "lock:" + key
}
