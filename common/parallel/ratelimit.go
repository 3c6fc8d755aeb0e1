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

package parallel

import (
	"time"

	"github.com/juju/ratelimit"
)

// RateLimiter returns how long the caller must wait before count units are available.
type RateLimiter interface {
	Take(count int64) time.Duration
}

// NewRateLimiter allows perMinute units every minute. A non-positive limit is unlimited.
func NewRateLimiter(perMinute int) RateLimiter {
	if perMinute <= 0 {
		return &Unlimited{}
	}
	return ratelimit.NewBucketWithQuantum(time.Minute, int64(perMinute), int64(perMinute))
}

type Unlimited struct{}

func (n *Unlimited) Take(count int64) time.Duration {
	return 0
}
