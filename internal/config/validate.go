package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mfareport/cli/internal/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// report field paths by their config keys, e.g. "platform.url"
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("cron", func(fl validator.FieldLevel) bool {
		return utils.ValidateCronSpec(fl.Field().String()) == nil
	})

	return v
}

// Validate checks every field and returns a *utils.MultiError of
// *utils.ValidationError values, or nil.
func (c *Config) Validate() error {
	errs := utils.NewMultiError()

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return utils.NewStageError(utils.StageConfig, err)
		}
		for _, fe := range verrs {
			errs.Add(utils.NewValidationError(fieldPath(fe), describe(fe)))
		}
	}

	// "required" accepts whitespace, which would match every address
	if len(c.Report.Domains) > 0 {
		if err := utils.ValidateDomains(c.Report.Domains); err != nil {
			errs.Add(utils.NewValidationError("report.domains", err.Error()))
		}
	}

	if err := utils.ValidateBaseURL(c.Platform.URL); err != nil && c.Platform.URL != "" {
		errs.Add(utils.NewValidationError("platform.url", err.Error()))
	}

	if errs.HasErrors() {
		return utils.NewStageError(utils.StageConfig, errs)
	}
	return nil
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be an email address"
	case "url":
		return "must be a URL"
	case "hostname":
		return "must be a host name"
	case "cron":
		return fmt.Sprintf("%q is not a valid 5-field cron expression", fe.Value())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
