package validation

import (
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-orderlines/internal/jsontime"
)

// New returns a configured validator with the custom tags and struct-level
// checks used by the order payloads.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	// orderdate accepts the date formats jsontime understands.
	_ = v.RegisterValidation("orderdate", func(fl validatorv10.FieldLevel) bool {
		_, err := jsontime.Parse(fl.Field().String())
		return err == nil
	})

	v.RegisterStructValidation(orderStructValidation, OrderRequest{})

	return v
}

// orderStructValidation rejects payloads that name the same line item twice.
func orderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(OrderRequest)

	seen := make(map[int64]bool, len(req.LineItems))
	for _, li := range req.LineItems {
		if li.ID == 0 {
			continue
		}
		if seen[li.ID] {
			sl.ReportError(req.LineItems, "orderLineItems", "LineItems", "unique_line_ids", fmt.Sprintf("line item %d listed twice", li.ID))
			return
		}
		seen[li.ID] = true
	}
}
