package middleware

import (
	"github.com/go-chi/cors"
)

// NewCORS builds the CORS policy for browser clients of the API. Origins
// come from configuration; methods cover the run lifecycle (POST to submit,
// DELETE to cancel) plus the read endpoints.
func NewCORS(allowedOrigins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
		},
		ExposedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
