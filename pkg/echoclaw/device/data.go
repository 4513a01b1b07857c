package device

// Shape discriminates the Data payload.
type Shape int

const (
	// ShapeNone is the zero value: no device data was requested.
	ShapeNone Shape = iota
	ShapeList
	ShapeRecord
	ShapeError
)

func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeRecord:
		return "record"
	case ShapeError:
		return "error"
	default:
		return "none"
	}
}

// Data is the result of a device query: an ordered list of records, a single
// record, or an error marker. Records are opaque to consumers and are only
// ever serialized.
type Data struct {
	Shape  Shape
	List   []any
	Record any
	Err    string
}

// ListData wraps a sequence of records.
func ListData[T any](items []T) Data {
	list := make([]any, len(items))
	for i, it := range items {
		list[i] = it
	}
	return Data{Shape: ShapeList, List: list}
}

// RecordData wraps a single record.
func RecordData(record any) Data {
	return Data{Shape: ShapeRecord, Record: record}
}

// ErrorData builds an error marker.
func ErrorData(msg string) Data {
	return Data{Shape: ShapeError, Err: msg}
}
