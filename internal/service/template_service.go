// internal/service/template_service.go
package service

import (
	"strings"
)

// RenderTemplate replaces {key} placeholders with values from data.
// Unknown placeholders are left as they are.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}
