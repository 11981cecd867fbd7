package router

import (
	"os"
	"path/filepath"

	"github.com/AntoinePinto/docu-talk/pkg/validator"
)

// AddOpenAPIValidation enforces the service contract on incoming requests
// and serves the schema itself under /api/docs. Missing schema files only
// log a warning so local development works without one.
func (r *Router) AddOpenAPIValidation(schemaPath string) {
	if _, err := os.Stat(schemaPath); os.IsNotExist(err) {
		r.Logger.Warn("OpenAPI schema not found, request validation disabled", "path", schemaPath)
		return
	}

	v, err := validator.NewOpenAPIValidator(schemaPath)
	if err != nil {
		r.Logger.LogError(err, "OpenAPI validator init failed", "path", schemaPath)
		return
	}

	r.Engine.Use(v.Middleware())
	r.Engine.Static("/api/docs", filepath.Dir(schemaPath))
	r.Logger.Info("OpenAPI validation enabled", "schema", schemaPath)
}
