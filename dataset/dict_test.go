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

package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFreqDict(t *testing.T) {
	dict := NewFreqDict()
	assert.Equal(t, 0, dict.Id("$$"))
	assert.Equal(t, 1, dict.Id("$"))
	assert.Equal(t, 1, dict.Id("$"))
	assert.Equal(t, 2, dict.NotCount("$$$"))
	assert.Equal(t, 3, dict.Count())
	assert.Equal(t, 1, dict.Freq(0))
	assert.Equal(t, 2, dict.Freq(1))
	assert.Equal(t, 0, dict.Freq(2))
	assert.Equal(t, 0, dict.Freq(10))
	s, ok := dict.String(2)
	assert.True(t, ok)
	assert.Equal(t, "$$$", s)
	_, ok = dict.String(3)
	assert.False(t, ok)
	id, ok := dict.Lookup("$$")
	assert.True(t, ok)
	assert.Equal(t, 0, id)
	_, ok = dict.Lookup("$$$$")
	assert.False(t, ok)
	assert.Equal(t, []string{"$", "$$", "$$$"}, dict.Strings())
}

func TestFreqDictMode(t *testing.T) {
	dict := NewFreqDict()
	_, ok := dict.Mode()
	assert.False(t, ok)
	dict.NotCount("high")
	_, ok = dict.Mode()
	assert.False(t, ok)
	dict.Id("mid")
	dict.Id("low")
	mode, ok := dict.Mode()
	assert.True(t, ok)
	assert.Equal(t, "low", mode)
	dict.Id("mid")
	mode, _ = dict.Mode()
	assert.Equal(t, "mid", mode)
}
