package api

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Aman-CERP/variomes/internal/config"
)

var (
	namePattern       = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	collectionPattern = regexp.MustCompile(`^[a-z]+$`)
	registerOnce      sync.Once
)

// commonParams are accepted by every ranking endpoint.
type commonParams struct {
	UniqueID    string `form:"uniqueId" binding:"omitempty,max=128,safename"`
	Collections string `form:"collections" binding:"omitempty,collections"`
	Collection  string `form:"collection" binding:"omitempty,collections"`
	MinDate     string `form:"minDate" binding:"omitempty,number"`
	MaxDate     string `form:"maxDate" binding:"omitempty,number"`
	Nb          string `form:"nb" binding:"omitempty,number,max=5"`
	Log         string `form:"log" binding:"omitempty,oneof=true false"`
}

type rankLitParams struct {
	commonParams
}

type rankVarParams struct {
	commonParams
	GenVars string `form:"genvars"`
	File    string `form:"file" binding:"omitempty,max=128,safename"`
}

type fetchParams struct {
	commonParams
	IDs string `form:"ids" binding:"required_without=ID"`
	ID  string `form:"id" binding:"required_without=IDs"`
}

type statusParams struct {
	UniqueID string `form:"uniqueId" binding:"required,max=128,safename"`
}

// registerValidators installs the custom tags on gin's validator and makes
// error messages use parameter names.
func registerValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			if name := f.Tag.Get("form"); name != "" && name != "-" {
				return name
			}
			return f.Name
		})
		_ = v.RegisterValidation("safename", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return namePattern.MatchString(s) && strings.Trim(s, ".") != ""
		})
		_ = v.RegisterValidation("collections", func(fl validator.FieldLevel) bool {
			for _, c := range config.SplitParam(fl.Field().String(), ",") {
				if !collectionPattern.MatchString(c) {
					return false
				}
			}
			return true
		})
	})
}

// describeBindError turns a binding failure into a one-line message.
func describeBindError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "required_without":
			msgs = append(msgs, fmt.Sprintf("parameter %s is required", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("parameter %s is invalid (%s)", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
