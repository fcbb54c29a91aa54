package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	"github.com/noah-isme/student-portal/internal/store"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
)

var validate = validator.New()

// decodeRecord overlays the record's fields onto out, which the caller has
// pre-filled with defaults. Absent or null fields keep their default; present
// fields that cannot be coerced, or that violate the shape's constraints,
// make the record malformed.
func decodeRecord(rec store.Record, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "doc",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(rec.Fields); err != nil {
		return appErrors.WrapAs(appErrors.ErrStoreMalformed, err, fmt.Sprintf("decode record %s", rec.ID))
	}
	if err := validate.Struct(out); err != nil {
		return appErrors.WrapAs(appErrors.ErrStoreMalformed, err, fmt.Sprintf("invalid record %s", rec.ID))
	}
	return nil
}
