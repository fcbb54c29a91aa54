package export

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"
)

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

// Renderer turns a dataset into a downloadable document.
type Renderer interface {
	Render(data Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// FromItems builds a dataset from a slice of structs. Columns follow field
// order and are named after the json tag; fields tagged "-" or unexported are
// skipped.
func FromItems(title string, items interface{}) (Dataset, error) {
	v := reflect.ValueOf(items)
	if v.Kind() != reflect.Slice {
		return Dataset{}, fmt.Errorf("export items must be a slice, got %T", items)
	}
	elem := v.Type().Elem()
	for elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	if elem.Kind() != reflect.Struct {
		return Dataset{}, fmt.Errorf("export items must be structs, got %s", elem)
	}

	type column struct {
		index int
		name  string
	}
	var columns []column
	for i := 0; i < elem.NumField(); i++ {
		f := elem.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		columns = append(columns, column{index: i, name: name})
	}
	if len(columns) == 0 {
		return Dataset{}, fmt.Errorf("%s has no exportable fields", elem)
	}

	data := Dataset{Title: title, Headers: make([]string, 0, len(columns))}
	for _, c := range columns {
		data.Headers = append(data.Headers, c.name)
	}
	for i := 0; i < v.Len(); i++ {
		item := reflect.Indirect(v.Index(i))
		if !item.IsValid() {
			continue
		}
		row := make(map[string]string, len(columns))
		for _, c := range columns {
			row[c.name] = cast.ToString(item.Field(c.index).Interface())
		}
		data.Rows = append(data.Rows, row)
	}
	return data, nil
}

func (d Dataset) cells(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}
