package endpoints

import (
	"bytes"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kyamashita/honyaku/internal/api"
)

// htmlRenderer converts the result Markdown for in-browser preview. GFM
// covers the tables and strikethrough some OCR models emit.
var htmlRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

const htmlShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Translation Result</title>
<style>
body { max-width: 48rem; margin: 2rem auto; padding: 0 1rem; font-family: sans-serif; line-height: 1.6; }
h2 { border-bottom: 1px solid #ddd; padding-bottom: 0.3rem; }
</style>
</head>
<body>
%s</body>
</html>
`

// ResultHTMLEndpoint handles GET /jobs/{id}/result/html, rendering the
// merged Markdown as a standalone HTML page.
type ResultHTMLEndpoint struct{}

var _ api.Endpoint = (*ResultHTMLEndpoint)(nil)

func (e *ResultHTMLEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/jobs/{id}/result/html", e.handler
}

func (e *ResultHTMLEndpoint) RequiresInit() bool { return true }

func (e *ResultHTMLEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	path, ok := resultPathOrError(w, r)
	if !ok {
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read result: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := htmlRenderer.Convert(data, &buf); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render result: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, htmlShell, buf.String())
}

func (e *ResultHTMLEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "result-html <id>",
		Short: "Fetch the translated result rendered as HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			body, err := client.GetRaw(cmd.Context(), "/jobs/"+args[0]+"/result/html")
			if err != nil {
				return err
			}
			fmt.Print(string(body))
			return nil
		},
	}
}
