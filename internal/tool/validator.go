package tool

import (
	"fmt"
)

// ValidateArgs checks parsed arguments against a tool's parameter schema.
// Only required fields and primitive property types are enforced.
func ValidateArgs(schema map[string]interface{}, args map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}
	return validateObject(schema, args)
}

func validateObject(schema map[string]interface{}, input map[string]interface{}) error {
	for _, fieldName := range requiredFields(schema["required"]) {
		if _, exists := input[fieldName]; !exists {
			return fmt.Errorf("missing required field: %s", fieldName)
		}
	}

	properties, ok := schema["properties"].(map[string]interface{})
	if !ok {
		return nil
	}

	for key, value := range input {
		propSchema, ok := properties[key].(map[string]interface{})
		if !ok {
			// unknown fields pass through to the handler
			continue
		}
		if err := validateType(key, propSchema, value); err != nil {
			return err
		}
	}

	return nil
}

func requiredFields(v interface{}) []string {
	switch required := v.(type) {
	case []string:
		return required
	case []interface{}:
		out := make([]string, 0, len(required))
		for _, field := range required {
			if name, ok := field.(string); ok {
				out = append(out, name)
			}
		}
		return out
	}
	return nil
}

func validateType(fieldName string, schema map[string]interface{}, value interface{}) error {
	expectedType, ok := schema["type"].(string)
	if !ok || value == nil {
		return nil
	}

	switch expectedType {
	case "string", "str":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field '%s' expected string, got %T", fieldName, value)
		}
	case "number", "integer", "int", "float":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("field '%s' expected number, got %T", fieldName, value)
		}
	case "boolean", "bool":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field '%s' expected boolean, got %T", fieldName, value)
		}
	case "array":
		arr, ok := value.([]interface{})
		if !ok {
			return fmt.Errorf("field '%s' expected array, got %T", fieldName, value)
		}
		if itemsSchema, ok := schema["items"].(map[string]interface{}); ok {
			for i, item := range arr {
				if err := validateType(fmt.Sprintf("%s[%d]", fieldName, i), itemsSchema, item); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("field '%s' expected object, got %T", fieldName, value)
		}
		return validateObject(schema, obj)
	}

	return nil
}
