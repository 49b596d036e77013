// Package pages holds the full-page components served by the web adapter.
package pages

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/fitflow/internal/adapter/driving/web/viewmodel"
)

// Result renders the outcome of an authorization handshake. Heading is
// escaped here; the fragment fields are rendered as given.
func Result(page vm.ResultViewModel) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "fail"
		if page.Success {
			class = "ok"
		}
		if err := writeAll(w, `<h2 class="`, class, `">`, templ.EscapeString(page.Heading), `</h2>`); err != nil {
			return err
		}
		if err := fragment(ctx, w, `<div class="message">`, page.Message, `</div>`); err != nil {
			return err
		}

		if !page.Success && (page.StatusCode != 0 || page.ProviderBody != nil) {
			status := ""
			if page.StatusCode != 0 {
				status = strconv.Itoa(page.StatusCode) + ": "
			}
			if err := fragment(ctx, w, `<p>The following error was returned:</p><pre>`+status, page.ProviderBody, `</pre>`); err != nil {
				return err
			}
		}

		if page.Hint != nil {
			return fragment(ctx, w, `<div class="hint">`, page.Hint, `</div>`)
		}
		return nil
	})
}

// fragment renders c between open and end. A nil c leaves the element empty.
func fragment(ctx context.Context, w io.Writer, open string, c templ.Component, end string) error {
	if _, err := io.WriteString(w, open); err != nil {
		return err
	}
	if c != nil {
		if err := c.Render(ctx, w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, end)
	return err
}

func writeAll(w io.Writer, parts ...string) error {
	for _, p := range parts {
		if _, err := io.WriteString(w, p); err != nil {
			return err
		}
	}
	return nil
}
