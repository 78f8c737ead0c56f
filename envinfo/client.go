package envinfo

import (
	"net/http"
	"strconv"
	"strings"
)

// Client describes the browser that submitted a report, as far as its request headers tell.
type Client struct {
	Page           Page        `json:"page"`
	UserAgent      string      `json:"userAgent,omitempty"`
	Language       string      `json:"language,omitempty"`
	Platform       string      `json:"platform,omitempty"`
	Viewport       *Viewport   `json:"viewport,omitempty"`
	DeviceMemoryGB *float64    `json:"deviceMemoryGB,omitempty"`
	Connection     *Connection `json:"connection,omitempty"`
}

// Page is the page the report was sent from.
type Page struct {
	URL      string `json:"url,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

// Viewport holds the viewport client hints.
type Viewport struct {
	W   *int     `json:"w,omitempty"`
	DPR *float64 `json:"dpr,omitempty"`
}

// Connection holds the network client hints.
type Connection struct {
	Downlink      *float64 `json:"downlink,omitempty"`
	RTT           *int     `json:"rtt,omitempty"`
	EffectiveType string   `json:"effectiveType,omitempty"`
	SaveData      bool     `json:"saveData"`
}

// FromRequest extracts client context from the request headers, the page is the one in Referer.
// Client hints are optional, only the ones the browser sent are filled in.
func FromRequest(r *http.Request) Client {
	h := r.Header
	c := Client{
		Page:      Page{URL: h.Get("Referer")},
		UserAgent: h.Get("User-Agent"),
		Language:  firstLanguage(h.Get("Accept-Language")),
		Platform:  strings.Trim(h.Get("Sec-CH-UA-Platform"), `"`),
	}

	width := intHint(h, "Sec-CH-Viewport-Width", "Viewport-Width")
	dpr := floatHint(h, "Sec-CH-DPR", "DPR")
	if width != nil || dpr != nil {
		c.Viewport = &Viewport{W: width, DPR: dpr}
	}

	c.DeviceMemoryGB = floatHint(h, "Sec-CH-Device-Memory", "Device-Memory")

	downlink := floatHint(h, "Downlink")
	rtt := intHint(h, "RTT")
	ect := h.Get("ECT")
	saveData := strings.EqualFold(h.Get("Save-Data"), "on")
	if downlink != nil || rtt != nil || ect != "" || saveData {
		c.Connection = &Connection{Downlink: downlink, RTT: rtt, EffectiveType: ect, SaveData: saveData}
	}

	return c
}

func firstLanguage(acceptLanguage string) string {
	first, _, _ := strings.Cut(acceptLanguage, ",")
	lang, _, _ := strings.Cut(first, ";")
	return strings.TrimSpace(lang)
}

func floatHint(h http.Header, names ...string) *float64 {
	for _, name := range names {
		if v, err := strconv.ParseFloat(strings.TrimSpace(h.Get(name)), 64); err == nil {
			return &v
		}
	}
	return nil
}

func intHint(h http.Header, names ...string) *int {
	for _, name := range names {
		if v, err := strconv.Atoi(strings.TrimSpace(h.Get(name))); err == nil {
			return &v
		}
	}
	return nil
}
