// Package api embeds the OpenAPI document describing the HTTP surface.
package api

import _ "embed"

// Spec holds the raw OpenAPI 3 document in YAML form.
//
//go:embed openapi.yaml
var Spec []byte
