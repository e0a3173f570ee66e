// Package docs содержит описание HTTP API в формате Swagger 2.0.
package docs

import (
	_ "embed"
	"net/http"
)

//go:embed swagger.json
var SwaggerJSON []byte

// Handler отдаёт swagger.json для UI на /swagger/.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(SwaggerJSON)
	})
}
