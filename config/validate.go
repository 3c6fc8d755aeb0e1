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

package config

import (
	"math"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/juju/errors"
)

var (
	validate   = validator.New()
	translator ut.Translator
)

func init() {
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}
	validate.RegisterStructValidation(validateWeights, Weights{})
	if err := validate.RegisterTranslation("sum_one", translator, func(ut ut.Translator) error {
		return ut.Add("sum_one", "{0} must sum to 1", true)
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T("sum_one", fe.Field())
		return t
	}); err != nil {
		panic(err)
	}
}

const weightsTolerance = 1e-6

// validateWeights rejects weight triples that do not sum to 1.
func validateWeights(sl validator.StructLevel) {
	w := sl.Current().Interface().(Weights)
	if math.Abs(w.UserBased+w.Content+w.Popularity-1) > weightsTolerance {
		sl.ReportError(w, "Weights", "Weights", "sum_one", "")
	}
}

// Validate checks ranges of every field and reports all violations at once.
func (config *Config) Validate() error {
	err := validate.Struct(config)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errors.Trace(err)
	}
	messages := make([]string, 0, len(validationErrors))
	for _, fieldError := range validationErrors {
		messages = append(messages, fieldError.Namespace()+": "+fieldError.Translate(translator))
	}
	return errors.NotValidf("config (%s)", strings.Join(messages, "; "))
}
