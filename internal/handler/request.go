package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/DukeRupert/compliq/internal/domain"
	"github.com/go-playground/validator/v10"
)

// defaultMaxBodyBytes caps JSON bodies other than document uploads.
const defaultMaxBodyBytes = 64 << 10

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body of at most maxBytes into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, v *validator.Validate, maxBytes int64, dst any) error {
	const op = "handler.decode"

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Errorf(domain.ETOOLARGE, op, "Request body exceeds %d bytes.", maxErr.Limit)
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body is required.")
		default:
			return domain.Invalid(op, "Request body is not valid JSON.")
		}
	}

	if v == nil {
		return nil
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.Invalid(op, "Request is invalid.")
		}
		ve := &domain.ValidationError{Op: op, Fields: make(map[string]string, len(verrs))}
		for _, fe := range verrs {
			ve.Fields[fieldPath(fe)] = messageForTag(fe)
		}
		return ve
	}
	return nil
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "iso3166_1_alpha2":
		return "must be a two-letter country code"
	case "base64":
		return "must be base64 encoded"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

