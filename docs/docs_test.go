package docs

import (
	"strings"
	"testing"

	"github.com/swaggo/swag"
)

func TestSwaggerInfoRegistered(t *testing.T) {
	if SwaggerInfo == nil {
		t.Fatal("swagger info not initialized")
	}
	if SwaggerInfo.Title != "Crypto Correlator API" {
		t.Fatalf("unexpected title %q", SwaggerInfo.Title)
	}

	doc, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}
	for _, path := range []string{"/health", "/api/records", "/api/pipeline/status"} {
		if !strings.Contains(doc, path) {
			t.Fatalf("expected %s in swagger doc", path)
		}
	}
}
