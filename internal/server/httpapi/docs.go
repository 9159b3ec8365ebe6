package httpapi

import (
	_ "embed"
	"html"
	"net/http"
)

//go:embed openapi.yaml
var openAPISpec []byte

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(openAPISpec)
}

// serveDocs renders the OpenAPI document as a self-contained page.
func serveDocs(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(`<!doctype html>
<html><head><meta charset="utf-8"><title>bookkeeper API</title></head>
<body><h1>bookkeeper API</h1>
<p><a href="/api-docs/openapi.yaml">openapi.yaml</a></p>
<pre>` + html.EscapeString(string(openAPISpec)) + `</pre>
</body></html>
`))
}
