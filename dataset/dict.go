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

import "sort"

// FreqDict assigns dense ids to strings in insertion order and counts occurrences.
type FreqDict struct {
	si  map[string]int
	is  []string
	cnt []int
}

func NewFreqDict() *FreqDict {
	return &FreqDict{si: map[string]int{}}
}

func (d *FreqDict) Count() int {
	return len(d.is)
}

// Id returns the id of s and counts one occurrence.
func (d *FreqDict) Id(s string) int {
	y := d.NotCount(s)
	d.cnt[y]++
	return y
}

// NotCount returns the id of s without counting it.
func (d *FreqDict) NotCount(s string) int {
	if y, ok := d.si[s]; ok {
		return y
	}
	y := len(d.is)
	d.si[s] = y
	d.is = append(d.is, s)
	d.cnt = append(d.cnt, 0)
	return y
}

// Lookup returns the id of s if present.
func (d *FreqDict) Lookup(s string) (int, bool) {
	y, ok := d.si[s]
	return y, ok
}

func (d *FreqDict) String(id int) (string, bool) {
	if id < 0 || id >= len(d.is) {
		return "", false
	}
	return d.is[id], true
}

func (d *FreqDict) Freq(id int) int {
	if id < 0 || id >= len(d.cnt) {
		return 0
	}
	return d.cnt[id]
}

// Mode returns the most frequent string, breaking ties by the smaller string.
func (d *FreqDict) Mode() (string, bool) {
	best := -1
	for id, s := range d.is {
		if d.cnt[id] == 0 {
			continue
		}
		if best < 0 || d.cnt[id] > d.cnt[best] || (d.cnt[id] == d.cnt[best] && s < d.is[best]) {
			best = id
		}
	}
	if best < 0 {
		return "", false
	}
	return d.is[best], true
}

// Strings returns all strings sorted lexicographically.
func (d *FreqDict) Strings() []string {
	s := append([]string(nil), d.is...)
	sort.Strings(s)
	return s
}
