package validate

import "fmt"

// DefaultConditionLevel is written into condition.level when the API
// leaves it out.
const DefaultConditionLevel = "Buone"

const maxUncertainFields = 5

// VisionResult checks a vision record. A missing condition.level does not
// fail: it is set to DefaultConditionLevel in place, the only mutation any
// validator makes.
func VisionResult(data map[string]any) Result {
	if data == nil {
		return fail("Data is not an object")
	}

	product, pok := data["product"].(map[string]any)
	if !pok || product == nil {
		return fail("Missing required field: product")
	}
	condition, cok := data["condition"].(map[string]any)
	if !cok || condition == nil {
		return fail("Missing required field: condition")
	}

	if !truthy(product["type"]) && !truthy(product["category_hint"]) {
		return fail("Product type/category not identified")
	}

	if !truthy(condition["level"]) {
		condition["level"] = DefaultConditionLevel
	}

	if u, isList := data["missing_or_uncertain"].([]any); isList && len(u) > maxUncertainFields {
		return warn(fmt.Sprintf("Vision data has many uncertain fields: %d", len(u)))
	}
	return ok()
}
