package navigator

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Intent is a navigation the user asked for: a link click or a form
// submission.
type Intent struct {
	// Href is the target, resolved against the current document URL.
	Href string

	// Method is GET or POST. Empty means GET.
	Method string

	// Body and ContentType are sent with POST intents.
	Body        []byte
	ContentType string
}

// IsAbsolute reports whether Href names a scheme and host. Absolute hrefs
// are still fetched as payloads when they share the document's origin.
func (in Intent) IsAbsolute() bool {
	u, err := url.Parse(in.Href)
	return err == nil && u.IsAbs() && u.Host != ""
}

func (in Intent) method() string {
	if strings.EqualFold(in.Method, http.MethodPost) {
		return http.MethodPost
	}
	return http.MethodGet
}

// linkIntent builds the intent for clicking an anchor.
func linkIntent(a *goquery.Selection) Intent {
	href, _ := a.Attr("href")
	return Intent{Href: href, Method: http.MethodGet}
}

// formIntent builds the intent for submitting form, optionally through the
// submit button that was clicked. The button's formaction and formmethod
// attributes take precedence over the form's.
func formIntent(form, button *goquery.Selection, base *url.URL) (Intent, error) {
	action := form.AttrOr("action", "")
	method := form.AttrOr("method", http.MethodGet)
	enctype := form.AttrOr("enctype", "application/x-www-form-urlencoded")
	if button != nil {
		if v, ok := button.Attr("formaction"); ok {
			action = v
		}
		if v, ok := button.Attr("formmethod"); ok {
			method = v
		}
		if v, ok := button.Attr("formenctype"); ok {
			enctype = v
		}
	}

	target := *base
	if action != "" {
		u, err := base.Parse(action)
		if err != nil {
			return Intent{}, err
		}
		target = *u
	}
	target.Fragment = ""

	fields := formFields(form, button)

	if !strings.EqualFold(method, http.MethodPost) {
		// GET submissions replace the action's query with the fields.
		target.RawQuery = fields.Encode()
		return Intent{Href: target.String(), Method: http.MethodGet}, nil
	}

	in := Intent{Href: target.String(), Method: http.MethodPost}
	if strings.EqualFold(enctype, "multipart/form-data") {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for _, name := range sortedKeys(fields) {
			for _, v := range fields[name] {
				if err := mw.WriteField(name, v); err != nil {
					return Intent{}, err
				}
			}
		}
		if err := mw.Close(); err != nil {
			return Intent{}, err
		}
		in.Body = buf.Bytes()
		in.ContentType = mw.FormDataContentType()
		return in, nil
	}
	in.Body = []byte(fields.Encode())
	in.ContentType = "application/x-www-form-urlencoded"
	return in, nil
}

// formFields serializes the successful controls of form in document order.
func formFields(form, button *goquery.Selection) url.Values {
	vals := url.Values{}
	form.Find("input, textarea, select").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}
		switch goquery.NodeName(s) {
		case "textarea":
			vals.Add(name, s.Text())
		case "select":
			opt := s.Find("option[selected]").First()
			if opt.Length() == 0 {
				opt = s.Find("option").First()
			}
			if opt.Length() > 0 {
				vals.Add(name, opt.AttrOr("value", opt.Text()))
			}
		default:
			switch strings.ToLower(s.AttrOr("type", "text")) {
			case "submit", "button", "reset", "image", "file":
				return
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); !checked {
					return
				}
				vals.Add(name, s.AttrOr("value", "on"))
			default:
				vals.Add(name, s.AttrOr("value", ""))
			}
		}
	})
	if button != nil {
		if name, ok := button.Attr("name"); ok && name != "" {
			vals.Add(name, button.AttrOr("value", ""))
		}
	}
	return vals
}

func sortedKeys(v url.Values) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
