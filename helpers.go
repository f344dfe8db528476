package hxnav

import (
	"context"
	"html"
	"io"
	"strings"

	"github.com/a-h/templ"
	"github.com/pthm/hxnav/lib/payload"
)

// HeadTag is an alias for payload.HeadTag for convenience.
type HeadTag = payload.HeadTag

// Title returns a <title> head tag.
func Title(text string) HeadTag {
	return HeadTag{Name: "title", Content: text}
}

// Meta returns a <meta name=... content=...> head tag.
func Meta(name, content string) HeadTag {
	return HeadTag{Name: "meta", Attrs: []payload.Attr{
		{Name: "name", Value: name},
		{Name: "content", Value: content},
	}}
}

// Link returns a <link rel=... href=...> head tag.
func Link(rel, href string) HeadTag {
	return HeadTag{Name: "link", Attrs: []payload.Attr{
		{Name: "rel", Value: rel},
		{Name: "href", Value: href},
	}}
}

var voidHeadTags = map[string]bool{"meta": true, "link": true, "base": true}

// Head returns a templ component rendering head tags as HTML, so a renderer
// can describe its head once and use it for both documents and payloads:
//
//	head := []hxnav.HeadTag{hxnav.Title("Docs")}
//	if req.IsContentPayload() {
//	    return hxnav.Page(data, head...), nil
//	}
//	return hxnav.HTMLComponent(ctx, hxnav.Head(head...), body)
func Head(tags ...HeadTag) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, RenderHead(tags))
		return err
	})
}

// RenderHead renders head tags as HTML.
func RenderHead(tags []HeadTag) string {
	var sb strings.Builder
	for _, t := range tags {
		name := strings.ToLower(t.Name)
		if name == "" {
			continue
		}
		sb.WriteString("<")
		sb.WriteString(html.EscapeString(name))
		for _, a := range t.Attrs {
			sb.WriteString(" ")
			sb.WriteString(html.EscapeString(a.Name))
			sb.WriteString(`="`)
			sb.WriteString(html.EscapeString(a.Value))
			sb.WriteString(`"`)
		}
		sb.WriteString(">")
		if voidHeadTags[name] {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(html.EscapeString(t.Content))
		sb.WriteString("</")
		sb.WriteString(html.EscapeString(name))
		sb.WriteString(">\n")
	}
	return sb.String()
}
