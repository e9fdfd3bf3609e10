// Package kernelota exposes the OpenAPI document describing the server's HTTP surface.
package kernelota

import _ "embed"

// OpenAPIYAML is the OpenAPI 3 document served at /spec.yaml.
//
//go:embed openapi.yaml
var OpenAPIYAML []byte
