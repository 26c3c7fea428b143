package warehouse

import (
	"bytes"
	"fmt"
	"math"
	"math/big"
	"net"
	"reflect"
	"time"

	"github.com/goccy/go-json"
)

// Result is the tabular output of one query.
type Result struct {
	Columns []string
	Rows    []Row
}

// Row is one result row. Column order follows the SELECT clause and is kept
// when the row is encoded as a JSON object.
type Row struct {
	columns []string
	values  []any
}

func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

func (r Row) Columns() []string {
	return r.columns
}

func (r Row) Values() []any {
	return r.values
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return nil, false
}

func (r Row) MarshalJSON() ([]byte, error) {
	if len(r.columns) != len(r.values) {
		return nil, fmt.Errorf("row has %d columns but %d values", len(r.columns), len(r.values))
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// toJSONSafe converts driver values to JSON-serializable types.
// Handles special cases like net.IP, NaN, Inf, and other non-JSON-safe values.
func toJSONSafe(v any) any {
	if v == nil {
		return nil
	}

	switch val := v.(type) {
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return val
	case float32:
		if math.IsNaN(float64(val)) || math.IsInf(float64(val), 0) {
			return nil
		}
		return val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case net.IP:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case *big.Rat:
		if val == nil {
			return nil
		}
		f, _ := val.Float64()
		return f
	case *big.Int:
		if val == nil {
			return nil
		}
		return val
	case []byte:
		return string(val)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return toJSONSafe(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = toJSONSafe(rv.Index(i).Interface())
		}
		return out
	case reflect.Struct:
		// civil.Date, civil.DateTime, decimal.Decimal and friends
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
	}
	return v
}
