package api

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed openapi.yaml
var openapiSpec string

// SpecHandler serves the OpenAPI document with the {issuer} placeholder
// replaced by the configured issuer.
func SpecHandler(issuer string) echo.HandlerFunc {
	spec := strings.ReplaceAll(openapiSpec, "{issuer}", strings.TrimSuffix(issuer, "/"))
	return func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/yaml", []byte(spec))
	}
}

// SwaggerHandler serves a Swagger UI page for /openapi.yaml. Assets come
// from the CDN; the authorize dialog uses PKCE with the public docs client,
// and an API key can be entered for the apiKey scheme instead.
func SwaggerHandler(clientID string) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		var buf bytes.Buffer
		err := docsPage.Execute(&buf, docsPageData{
			SpecURL:        "/openapi.yaml",
			OAuth2Redirect: scheme + "://" + r.Host + "/docs/oauth2-redirect.html",
			ClientID:       clientID,
		})
		if err != nil {
			return err
		}
		return c.HTMLBlob(http.StatusOK, buf.Bytes())
	}
}

// OAuth2RedirectHandler serves the page Swagger UI returns to after login.
func OAuth2RedirectHandler(c echo.Context) error {
	return c.HTML(http.StatusOK, oauth2RedirectPage)
}

type docsPageData struct {
	SpecURL        string
	OAuth2Redirect string
	ClientID       string
}

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Smooshr API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="docs"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
  window.addEventListener("load", function () {
    window.ui = SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: "#docs",
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout",
      persistAuthorization: true,
      oauth2RedirectUrl: {{.OAuth2Redirect}},
    });
    window.ui.initOAuth({
      clientId: {{.ClientID}},
      usePkceWithAuthorizationCodeGrant: true,
      scopes: "openid profile email",
    });
  });
  </script>
</body>
</html>`))

const oauth2RedirectPage = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"/><title>Signing in</title></head>
<body>
<script>
if (window.opener && window.opener.swaggerUIRedirectCallback) {
  window.opener.swaggerUIRedirectCallback(window.location.href);
}
window.close();
</script>
</body>
</html>`
