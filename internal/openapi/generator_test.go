package openapi

import (
	"encoding/json"
	"testing"
)

func TestGenerateSpec_Paths(t *testing.T) {
	doc := GenerateSpec("1.2.3", "http://localhost:8080", "")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("expected OpenAPI 3.1.0, got %q", doc.OpenAPI)
	}
	if doc.Info.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", doc.Info.Version)
	}

	tests := []struct {
		path   string
		method string
	}{
		{"/api/v1/keys/create", "POST"},
		{"/api/v1/keys/create/admin", "POST"},
		{"/api/v1/keys/delete/{keyId}", "DELETE"},
		{"/api/v1/keys", "GET"},
		{"/api/v1/keys/me", "GET"},
		{"/api/v1/audit", "GET"},
	}
	for _, tt := range tests {
		item := doc.Paths.Value(tt.path)
		if item == nil {
			t.Errorf("missing path %s", tt.path)
			continue
		}
		if item.GetOperation(tt.method) == nil {
			t.Errorf("missing %s %s", tt.method, tt.path)
		}
	}
	if n := doc.Paths.Len(); n != len(tests) {
		t.Errorf("expected %d paths, got %d", len(tests), n)
	}
}

func TestGenerateSpec_SecurityScheme(t *testing.T) {
	doc := GenerateSpec("dev", "/", "X-Custom-Key")

	scheme, ok := doc.Components.SecuritySchemes[APIKeyScheme]
	if !ok {
		t.Fatal("missing apiKey security scheme")
	}
	if scheme.Value.In != "header" || scheme.Value.Name != "X-Custom-Key" {
		t.Errorf("unexpected scheme: in=%q name=%q", scheme.Value.In, scheme.Value.Name)
	}

	def := GenerateSpec("dev", "/", "")
	if name := def.Components.SecuritySchemes[APIKeyScheme].Value.Name; name != "X-API-Key" {
		t.Errorf("expected default header X-API-Key, got %q", name)
	}
}

func TestGenerateSpec_ErrorResponses(t *testing.T) {
	doc := GenerateSpec("dev", "/", "")
	op := doc.Paths.Value("/api/v1/keys/create").Post

	for _, code := range []string{"201", "400", "401", "403", "500"} {
		if op.Responses.Value(code) == nil {
			t.Errorf("create operation missing %s response", code)
		}
	}

	del := doc.Paths.Value("/api/v1/keys/delete/{keyId}").Delete
	if resp := del.Responses.Value("204"); resp == nil || resp.Value.Content != nil {
		t.Error("delete 204 response should exist without a body")
	}
}

func TestGenerateSpec_NoSecretsInKeySchema(t *testing.T) {
	doc := GenerateSpec("dev", "/", "")
	key := doc.Components.Schemas["Key"].Value

	for _, forbidden := range []string{"hashed_api_key", "api_key"} {
		if _, ok := key.Properties[forbidden]; ok {
			t.Errorf("Key schema exposes %q", forbidden)
		}
	}
}

func TestGenerateSpec_MarshalsJSON(t *testing.T) {
	doc := GenerateSpec("dev", "/", "")
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["paths"].(map[string]interface{}); !ok {
		t.Error("expected paths object in JSON output")
	}
}
