package hxnav

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"

	"github.com/a-h/templ"
)

// Shell placeholders replaced by the dispatcher for HTML results.
const (
	HeadPlaceholder = "<!-- hxnav:head -->"
	BodyPlaceholder = "<!-- hxnav:body -->"
)

// DefaultShell is the document template used when none is configured.
const DefaultShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
` + HeadPlaceholder + `
</head>
<body>
` + BodyPlaceholder + `
</body>
</html>
`

// assembleShell injects head and body into shell. Placeholders are located
// in the shell before substitution, so injected content that happens to
// contain a placeholder string is left alone.
func assembleShell(shell, head, body string) string {
	hi := strings.Index(shell, HeadPlaceholder)
	bi := strings.Index(shell, BodyPlaceholder)

	var sb strings.Builder
	sb.Grow(len(shell) + len(head) + len(body))
	pos := 0
	write := func(at int, placeholder, content string) {
		sb.WriteString(shell[pos:at])
		sb.WriteString(content)
		pos = at + len(placeholder)
	}
	switch {
	case hi >= 0 && bi >= 0 && hi < bi:
		write(hi, HeadPlaceholder, head)
		write(bi, BodyPlaceholder, body)
	case hi >= 0 && bi >= 0:
		write(bi, BodyPlaceholder, body)
		write(hi, HeadPlaceholder, head)
	case hi >= 0:
		write(hi, HeadPlaceholder, head)
	case bi >= 0:
		write(bi, BodyPlaceholder, body)
	}
	sb.WriteString(shell[pos:])
	return sb.String()
}

// errorPage renders the body of the HTML page shown for a failed render.
//
// In development the message and stack trace are included; otherwise the
// page is generic and exposes no internal detail.
func errorPage(status int, err error, stack []byte, dev bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		title := fmt.Sprintf("%d %s", status, http.StatusText(status))
		if _, e := fmt.Fprintf(w, `<main class="hxnav-error"><h1>%s</h1>`, html.EscapeString(title)); e != nil {
			return e
		}
		if dev && err != nil {
			if _, e := fmt.Fprintf(w, `<pre class="hxnav-error-message">%s</pre>`, html.EscapeString(err.Error())); e != nil {
				return e
			}
			if len(stack) > 0 {
				if _, e := fmt.Fprintf(w, `<pre class="hxnav-error-stack">%s</pre>`, html.EscapeString(string(stack))); e != nil {
					return e
				}
			}
		} else {
			msg := "Something went wrong while rendering this page."
			if status == http.StatusNotFound {
				msg = "The page you requested could not be found."
			}
			if _, e := fmt.Fprintf(w, `<p>%s</p>`, msg); e != nil {
				return e
			}
		}
		_, e := io.WriteString(w, `</main>`)
		return e
	})
}

// errorHead renders the title tag of an error page.
func errorHead(status int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, "<title>%d %s</title>", status, html.EscapeString(http.StatusText(status)))
		return err
	})
}
