package demo

import (
	"context"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/pthm/hxnav"
)

const navLinks = `<nav>
<a href="/">Home</a>
<a href="/pages">Pages</a>
<a href="/form">Form</a>
<a href="/hello">Hello</a>
<a href="/missing?from=nav">Missing</a>
<a href="/broken">Broken</a>
</nav>
`

// Head returns the head tags for a page.
func Head(d PageData) []hxnav.HeadTag {
	switch d.Route {
	case RouteIndex:
		return []hxnav.HeadTag{hxnav.Title("Home"), hxnav.Meta("description", "hxnav demo")}
	case RoutePages:
		return []hxnav.HeadTag{hxnav.Title(fmt.Sprintf("Page %d", d.Page))}
	case RouteForm:
		return []hxnav.HeadTag{hxnav.Title("Form")}
	case RouteHello:
		return []hxnav.HeadTag{hxnav.Title("Hello")}
	case RouteBroken:
		return []hxnav.HeadTag{hxnav.Title("Broken")}
	}
	return []hxnav.HeadTag{hxnav.Title("Not found")}
}

// Body renders the page body. The server uses it for documents and the
// client view uses it for applied payloads, so both produce the same page.
func Body(d PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var sb strings.Builder
		sb.WriteString(navLinks)
		sb.WriteString("<main>\n")
		switch d.Route {
		case RouteIndex:
			sb.WriteString("<h1>hxnav demo</h1>\n<p>Pick a page above.</p>\n")
		case RoutePages:
			fmt.Fprintf(&sb, "<h1>Pages</h1>\n<p>Current page: %d</p>\n", d.Page)
			for _, p := range []int{1, 2} {
				fmt.Fprintf(&sb, `<form method="get" action="/pages"><input type="hidden" name="page" value="%d"><button type="submit">Page %d</button></form>`+"\n", p, p)
			}
			fmt.Fprintf(&sb, `<a href="%s">This page</a>`+"\n", html.EscapeString(fmt.Sprintf("/pages?page=%d", d.Page)))
		case RouteForm:
			sb.WriteString("<h1>Form</h1>\n" + `<form method="post" action="/form"><button type="submit">Submit</button></form>` + "\n")
		case RouteHello:
			sb.WriteString("<h1>Hello</h1>\n")
		case RouteBroken:
			sb.WriteString("<h1>Broken page</h1>\n")
		default:
			sb.WriteString("<h1>Page not found</h1>\n")
		}
		sb.WriteString("</main>\n")
		_, err := io.WriteString(w, sb.String())
		return err
	})
}
