// Package templates holds the page layout shared by all HTML responses.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

const layoutStyle = `body{font-family:system-ui,sans-serif;max-width:40rem;margin:4rem auto;padding:0 1rem;color:#222}` +
	`h2.ok{color:#1a7f37}h2.fail{color:#cf222e}` +
	`pre{background:#f6f8fa;padding:.75rem;overflow-x:auto;white-space:pre-wrap}`

// Layout wraps body in a minimal HTML document titled title.
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`+
			templ.EscapeString(title)+`</title><style>`+layoutStyle+`</style></head><body>`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}
