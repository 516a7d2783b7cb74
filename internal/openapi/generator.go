// Package openapi builds the OpenAPI document served at /openapi.json.
package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// APIKeyScheme is the security scheme name every /api/v1 operation requires.
const APIKeyScheme = "apiKey"

// GenerateSpec returns the OpenAPI 3.1 document for the keywarden API.
// header is the name of the API key header.
func GenerateSpec(version, baseURL, header string) *openapi3.T {
	if header == "" {
		header = "X-API-Key"
	}
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "keywarden API",
			Description: "API key issuance, revocation and request audit.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes[APIKeyScheme] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type: "apiKey",
			In:   "header",
			Name: header,
		},
	}
	doc.Security = openapi3.SecurityRequirements{
		{APIKeyScheme: {}},
	}

	doc.Components.Schemas["ErrorResponse"] = openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema()))
	doc.Components.Schemas["CreateKeyRequest"] = openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
		WithProperty("notes", openapi3.NewStringSchema()))
	doc.Components.Schemas["CreateKeyResponse"] = openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
		WithProperty("message", openapi3.NewStringSchema()).
		WithProperty("api_key", openapi3.NewStringSchema()).
		WithProperty("id", openapi3.NewInt64Schema()))
	doc.Components.Schemas["Key"] = openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("is_admin", openapi3.NewBoolSchema()).
		WithProperty("notes", openapi3.NewStringSchema()).
		WithProperty("created_at", openapi3.NewDateTimeSchema()))
	doc.Components.Schemas["AuditEntry"] = openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
		WithProperty("id", openapi3.NewInt64Schema()).
		WithProperty("api_key_id", openapi3.NewInt64Schema().WithNullable()).
		WithProperty("endpoint", openapi3.NewStringSchema()).
		WithProperty("method", openapi3.NewStringSchema()).
		WithProperty("status_code", openapi3.NewInt32Schema()).
		WithProperty("ip_address", openapi3.NewStringSchema()).
		WithProperty("timestamp", openapi3.NewDateTimeSchema()))

	doc.Paths = openapi3.NewPaths()

	doc.Paths.Set("/api/v1/keys/create", &openapi3.PathItem{
		Post: createOperation("createKey", "Issue a regular API key"),
	})
	doc.Paths.Set("/api/v1/keys/create/admin", &openapi3.PathItem{
		Post: createOperation("createAdminKey", "Issue an admin API key"),
	})
	doc.Paths.Set("/api/v1/keys/delete/{keyId}", &openapi3.PathItem{
		Delete: deleteOperation(),
	})
	doc.Paths.Set("/api/v1/keys", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "List API keys",
			Description: "Admin only. Returns key metadata; hashes and secrets are never included.",
			OperationID: "listKeys",
			Responses:   newResponses("200", "API keys", listSchema("#/components/schemas/Key")),
		},
	})
	doc.Paths.Set("/api/v1/keys/me", &openapi3.PathItem{
		Get: &openapi3.Operation{
			Tags:        []string{"keys"},
			Summary:     "Describe the calling key",
			OperationID: "getOwnKey",
			Responses:   newResponses("200", "The caller's key", openapi3.NewSchemaRef("#/components/schemas/Key", nil)),
		},
	})
	doc.Paths.Set("/api/v1/audit", &openapi3.PathItem{
		Get: auditOperation(),
	})

	return doc
}

func createOperation(id, summary string) *openapi3.Operation {
	return &openapi3.Operation{
		Tags:        []string{"keys"},
		Summary:     summary,
		Description: "Admin only. The raw key appears in this response and nowhere else.",
		OperationID: id,
		RequestBody: &openapi3.RequestBodyRef{
			Value: &openapi3.RequestBody{
				Description: "Optional notes for the new key",
				Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/CreateKeyRequest", nil)),
			},
		},
		Responses: newResponses("201", "Key created", openapi3.NewSchemaRef("#/components/schemas/CreateKeyResponse", nil)),
	}
}

func deleteOperation() *openapi3.Operation {
	idParam := openapi3.NewPathParameter("keyId").
		WithDescription("ID of the key to delete.").
		WithSchema(openapi3.NewInt64Schema())

	responses := newResponses("204", "Key deleted", nil)
	return &openapi3.Operation{
		Tags:        []string{"keys"},
		Summary:     "Delete an API key",
		Description: "Admin only. The key stops authenticating immediately.",
		OperationID: "deleteKey",
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{Value: idParam},
		},
		Responses: responses,
	}
}

func auditOperation() *openapi3.Operation {
	credParam := openapi3.NewQueryParameter("credential_id").
		WithDescription("Only entries attributed to this key.").
		WithSchema(openapi3.NewInt64Schema())
	limitParam := openapi3.NewQueryParameter("limit").
		WithDescription("Maximum entries to return (1-1000, default 100).").
		WithSchema(openapi3.NewInt32Schema())
	offsetParam := openapi3.NewQueryParameter("offset").
		WithDescription("Number of entries to skip.").
		WithSchema(openapi3.NewInt32Schema())

	return &openapi3.Operation{
		Tags:        []string{"audit"},
		Summary:     "List audit entries",
		Description: "Admin only. Newest first.",
		OperationID: "listAuditEntries",
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{Value: credParam},
			&openapi3.ParameterRef{Value: limitParam},
			&openapi3.ParameterRef{Value: offsetParam},
		},
		Responses: newResponses("200", "Audit entries", listSchema("#/components/schemas/AuditEntry")),
	}
}

// listSchema wraps an item schema in the {resource, meta} envelope.
func listSchema(itemRef string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("", openapi3.NewObjectSchema().
		WithPropertyRef("resource", &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: openapi3.NewSchemaRef(itemRef, nil),
			},
		}).
		WithPropertyRef("meta", metaSchema()))
}

// newResponses builds the success response plus the standard error
// responses. A nil schema means the success response has no body.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := description
	success := &openapi3.Response{Description: &successDesc}
	if schema != nil {
		success.Content = openapi3.NewContentWithJSONSchemaRef(schema)
	}
	responses.Set(statusCode, &openapi3.ResponseRef{Value: success})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	for _, e := range []struct {
		code string
		desc string
	}{
		{"400", "Bad request"},
		{"401", "Invalid API key"},
		{"403", "Insufficient privileges"},
		{"404", "Not found"},
		{"429", "Too many requests"},
		{"500", "Internal server error"},
	} {
		desc := e.desc
		responses.Set(e.code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
			},
		})
	}

	return responses
}

func metaSchema() *openapi3.SchemaRef {
	field := func(format, desc string) *openapi3.SchemaRef {
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:        &openapi3.Types{"integer"},
				Format:      format,
				Description: desc,
			},
		}
	}
	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"count":  field("int32", "Number of records in this response."),
				"total":  field("int64", "Total number of records matching the query."),
				"limit":  field("int32", "Maximum records returned per page."),
				"offset": field("int32", "Number of records skipped."),
			},
		},
	}
}
