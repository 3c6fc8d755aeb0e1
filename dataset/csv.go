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
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/juju/errors"
	"github.com/placerec/placerec/storage/data"
	"github.com/samber/lo"
)

// csvReader reads rows by header name. Missing columns read as empty strings.
type csvReader struct {
	reader  *csv.Reader
	columns map[string]int
	line    int
}

func newCSVReader(r io.Reader, required ...string) (*csvReader, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read header")
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, errors.NotValidf("missing column `%s`", name)
		}
	}
	return &csvReader{reader: reader, columns: columns, line: 1}, nil
}

// next returns a getter for the next row, or io.EOF.
func (r *csvReader) next() (func(string) string, error) {
	row, err := r.reader.Read()
	if err != nil {
		return nil, err
	}
	r.line++
	return func(name string) string {
		if i, ok := r.columns[name]; ok && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}, nil
}

func (r *csvReader) errorf(format string, args ...any) error {
	return errors.NotValidf("line %d: "+format, append([]any{r.line}, args...)...)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ReadUsers reads users with columns user_id, gender, date_of_birth and last_login.
func ReadUsers(r io.Reader) ([]data.User, error) {
	reader, err := newCSVReader(r, "user_id")
	if err != nil {
		return nil, errors.Trace(err)
	}
	var users []data.User
	for {
		get, err := reader.next()
		if err == io.EOF {
			return users, nil
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		user := data.User{UserId: get("user_id"), Gender: strings.ToLower(get("gender"))}
		if user.UserId == "" {
			return nil, reader.errorf("empty user id")
		}
		if s := get("date_of_birth"); s != "" {
			dateOfBirth, err := parseTime(s)
			if err != nil {
				return nil, reader.errorf("failed to parse date of birth `%s`", s)
			}
			user.DateOfBirth = &dateOfBirth
		}
		if user.LastLogin, err = parseTime(get("last_login")); err != nil {
			return nil, reader.errorf("failed to parse last login `%s`", get("last_login"))
		}
		users = append(users, user)
	}
}

// ReadItems reads places with columns item_id, name, category, location,
// description, average_rating, price_range, total_reviews and visit_count.
func ReadItems(r io.Reader) ([]data.Item, error) {
	reader, err := newCSVReader(r, "item_id")
	if err != nil {
		return nil, errors.Trace(err)
	}
	var items []data.Item
	for {
		get, err := reader.next()
		if err == io.EOF {
			return items, nil
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		item := data.Item{
			ItemId:      get("item_id"),
			Name:        get("name"),
			Category:    strings.ToLower(get("category")),
			Location:    get("location"),
			Description: get("description"),
			PriceRange:  get("price_range"),
		}
		if item.ItemId == "" {
			return nil, reader.errorf("empty place id")
		}
		if s := get("average_rating"); s != "" {
			rating, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, reader.errorf("invalid average rating `%s`", s)
			}
			item.AverageRating = lo.ToPtr(rating)
		}
		if item.TotalReviews, err = parseCount(get("total_reviews")); err != nil {
			return nil, reader.errorf("invalid total reviews `%s`", get("total_reviews"))
		}
		if item.VisitCount, err = parseCount(get("visit_count")); err != nil {
			return nil, reader.errorf("invalid visit count `%s`", get("visit_count"))
		}
		if item.Timestamp, err = parseTime(get("timestamp")); err != nil {
			return nil, reader.errorf("failed to parse timestamp `%s`", get("timestamp"))
		}
		items = append(items, item)
	}
}

// ReadInteractions reads interactions with columns kind, user_id, item_id,
// rating, status and timestamp. Reviews without a status are published.
func ReadInteractions(r io.Reader) ([]data.Interaction, error) {
	reader, err := newCSVReader(r, "kind", "user_id", "item_id")
	if err != nil {
		return nil, errors.Trace(err)
	}
	var interactions []data.Interaction
	for {
		get, err := reader.next()
		if err == io.EOF {
			return interactions, nil
		} else if err != nil {
			return nil, errors.Trace(err)
		}
		interaction := data.Interaction{
			Kind:   data.InteractionKind(strings.ToLower(get("kind"))),
			UserId: get("user_id"),
			ItemId: get("item_id"),
			Status: strings.ToLower(get("status")),
		}
		if !lo.Contains(data.InteractionKinds, interaction.Kind) {
			return nil, reader.errorf("unknown interaction kind `%s`", interaction.Kind)
		}
		if interaction.UserId == "" || interaction.ItemId == "" {
			return nil, reader.errorf("empty user or place id")
		}
		if interaction.Kind == data.Review {
			s := get("rating")
			if interaction.Rating, err = strconv.ParseFloat(s, 64); err != nil {
				return nil, reader.errorf("invalid rating `%s`", s)
			}
			if interaction.Status == "" {
				interaction.Status = data.StatusPublished
			}
		}
		if interaction.Timestamp, err = parseTime(get("timestamp")); err != nil {
			return nil, reader.errorf("failed to parse timestamp `%s`", get("timestamp"))
		}
		interactions = append(interactions, interaction)
	}
}

func parseCount(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
