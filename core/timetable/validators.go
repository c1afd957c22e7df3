package timetable

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
)

var (
	weekdayTag = "weekday"

	maxPeriodTag = "maxperiod"
)

// InitValidators registers the timetable validators.
// maxPeriods is the number of lesson periods in a day; no upper bound is checked when <= 0.
func InitValidators(validate *validator.Validate, translator ut.Translator, maxPeriods int) {
	_ = validate.RegisterValidation(weekdayTag, weekdayValidation)
	core.RegisterCustomTranslation(validate, translator, weekdayTag, weekdayText())

	_ = validate.RegisterValidation(maxPeriodTag, newMaxPeriodValidation(maxPeriods))
	core.RegisterCustomTranslation(validate, translator, maxPeriodTag, fmt.Sprintf("must not be greater than %d", maxPeriods))
}

func weekdayText() string {
	names := make([]string, 0, len(Days))
	for _, d := range Days {
		names = append(names, string(d))
	}
	return "must be one of: " + strings.Join(names, ", ")
}

// Custom Validators

// weekdayValidation checks that the field is a valid Day
func weekdayValidation(fl validator.FieldLevel) bool {
	return Day(fl.Field().String()).IsValid()
}

func newMaxPeriodValidation(maxPeriods int) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return maxPeriods <= 0 || fl.Field().Int() <= int64(maxPeriods)
	}
}
