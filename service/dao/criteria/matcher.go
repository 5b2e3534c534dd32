package criteria

import (
	"github.com/sansecao/spec-workflow-mcp-pro/model"
	"github.com/sansecao/spec-workflow-mcp-pro/service/dao"
)

// MatchRequest reports whether request satisfies every parameter. Unknown
// parameter names are ignored.
func MatchRequest(request *model.Request, parameters []*dao.Parameter) bool {
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		var actual string
		switch parameter.Name {
		case dao.ParamStatus:
			actual = string(request.Status)
		case dao.ParamCategory:
			actual = string(request.Category)
		case dao.ParamCategoryName:
			actual = request.CategoryName
		default:
			continue
		}
		if !matchValue(actual, parameter.Value) {
			return false
		}
	}
	return true
}

func matchValue(actual string, value interface{}) bool {
	switch expected := value.(type) {
	case string:
		return actual == expected
	case []string:
		for _, candidate := range expected {
			if actual == candidate {
				return true
			}
		}
		return false
	}
	return true
}
