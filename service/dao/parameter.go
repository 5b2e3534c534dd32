package dao

// Parameter names understood by approval DAOs.
const (
	ParamStatus       = "Status"
	ParamCategory     = "Category"
	ParamCategoryName = "CategoryName"
)

// Parameter is a named List filter; Value is a string or []string.
type Parameter struct {
	Name  string
	Value interface{}
}

func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
