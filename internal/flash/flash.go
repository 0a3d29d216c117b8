// Package flash carries one-shot notices across a redirect in a cookie.
package flash

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

const cookieName = "flash"

// Categories used by the pages.
const (
	Success = "success"
	Danger  = "danger"
)

// Message is a notice shown once on the next rendered page.
type Message struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Notices reads and writes the flash cookie. Secure marks the cookie
// Secure even on plain HTTP requests, for deployments behind a TLS proxy.
type Notices struct {
	secure bool
}

func New(secure bool) *Notices {
	return &Notices{secure: secure}
}

func (n *Notices) cookie(r *http.Request, value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   n.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		c.Expires = time.Unix(0, 0)
	}
	return c
}

// Set stores a notice for the next request.
func (n *Notices) Set(w http.ResponseWriter, r *http.Request, category, message string) {
	data, err := json.Marshal(Message{Category: category, Message: message})
	if err != nil {
		return
	}
	http.SetCookie(w, n.cookie(r, base64.RawURLEncoding.EncodeToString(data), 60))
}

// Pop returns the pending notice, if any, and clears it.
func (n *Notices) Pop(w http.ResponseWriter, r *http.Request) *Message {
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	http.SetCookie(w, n.cookie(r, "", -1))

	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Message == "" {
		return nil
	}
	return &msg
}
