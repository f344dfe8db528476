package demo

import (
	"net/http"
	"strconv"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/lib/session"
)

func (a *App) api(req *hxnav.CanonicalRequest) (hxnav.RenderResult, error) {
	switch req.PagePath() {
	case "/api/greet":
		return greet(req), nil
	case "/api/request-test":
		return hxnav.JSON(dumpRequest(req))
	case "/api/session":
		return a.session(req)
	}
	return hxnav.Text("not found").NotFound(), nil
}

// greet answers "Hello <first>" whether first arrives in the query string,
// a JSON body, a URL-encoded form or a multipart form.
func greet(req *hxnav.CanonicalRequest) hxnav.RenderResult {
	first, ok := req.FormValue("first")
	if !ok && req.ContentType() == "application/json" {
		var body struct {
			First string `json:"first"`
		}
		if err := req.DecodeJSON(&body); err == nil && body.First != "" {
			first, ok = body.First, true
		}
	}
	if !ok {
		return hxnav.Text("missing field: first").Status(http.StatusBadRequest)
	}
	return hxnav.Text("Hello " + first)
}

type requestDump struct {
	ID                string              `json:"id"`
	Method            string              `json:"method"`
	URL               string              `json:"url"`
	Headers           map[string][]string `json:"headers"`
	Cookies           map[string]string   `json:"cookies"`
	RawBody           *string             `json:"rawBody"`
	Query             map[string][]string `json:"query"`
	MultipartFormData []partDump          `json:"multipartFormData"`
	RequestTime       int64               `json:"requestTime"`
}

type partDump struct {
	Name     string `json:"name"`
	Filename string `json:"filename,omitempty"`
	Value    string `json:"value"`
}

func dumpRequest(req *hxnav.CanonicalRequest) requestDump {
	d := requestDump{
		ID:          req.ID(),
		Method:      req.Method(),
		URL:         req.RawURL(),
		Headers:     map[string][]string{},
		Cookies:     req.Cookies(),
		RawBody:     req.Body(),
		Query:       req.QueryParams(),
		RequestTime: req.RequestTime(),
	}
	for _, h := range req.Headers() {
		d.Headers[h.Name] = h.Values
	}
	if parts := req.MultipartFormData(); parts != nil {
		d.MultipartFormData = make([]partDump, len(parts))
		for i, p := range parts {
			d.MultipartFormData[i] = partDump{Name: p.Name, Filename: p.Filename, Value: p.Value()}
		}
	}
	return d
}

// session counts visits in a signed session cookie and reports the flash
// message left by the previous visit.
func (a *App) session(req *hxnav.CanonicalRequest) (hxnav.RenderResult, error) {
	s := session.Load(req.Cookies(), session.DefaultName)

	count := 0
	if v, ok := s.Get("count"); ok {
		count, _ = strconv.Atoi(v)
	}
	count++
	previous, _ := s.Get("notice")

	s.Set("count", strconv.Itoa(count))
	s.Flash("notice", "visit "+strconv.Itoa(count))

	c, err := s.Cookie(session.DefaultName, a.keyring, session.Options{})
	if err != nil {
		return hxnav.RenderResult{}, err
	}
	res, err := hxnav.JSON(map[string]any{"count": count, "notice": previous})
	if err != nil {
		return hxnav.RenderResult{}, err
	}
	return res.SetCookie(c).Header("Cache-Control", "no-store"), nil
}
