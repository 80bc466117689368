package ingestion

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/your-org/clipflow/internal/clip"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// Rules configures which events the pipeline reacts to.
type Rules struct {
	ChannelIDs []string
	SelfID     string
	MediaHosts []string
	CDNHosts   []string
	Extensions []string
}

// Classifier decides whether an event carries a clip and which
// acquisition path applies.
type Classifier struct {
	channels   map[string]struct{}
	selfID     string
	mediaHosts []string
	cdnHosts   []string
	extensions map[string]struct{}
}

// NewClassifier builds a Classifier from rules. Hosts and extensions are
// matched case-insensitively.
func NewClassifier(r Rules) *Classifier {
	return &Classifier{
		channels:   toSet(r.ChannelIDs, false),
		selfID:     r.SelfID,
		mediaHosts: normalizeHosts(r.MediaHosts),
		cdnHosts:   normalizeHosts(r.CDNHosts),
		extensions: toSet(r.Extensions, true),
	}
}

// Classify returns the clip source for ev, or false when the event should
// be ignored. A qualifying URL in the text wins over any attachment.
func (c *Classifier) Classify(ev clip.Event) (clip.Source, bool) {
	if _, ok := c.channels[ev.ChannelID]; !ok {
		return clip.Source{}, false
	}
	if c.selfID != "" && ev.AuthorID == c.selfID {
		return clip.Source{}, false
	}

	if raw, ok := c.matchURL(ev.Content); ok {
		return clip.Source{Kind: clip.KindRemoteURL, URL: raw}, true
	}

	for i := range ev.Attachments {
		att := ev.Attachments[i]
		if !c.fromCDN(att.URL) {
			continue
		}
		if _, ok := c.extensions[att.Extension()]; !ok {
			continue
		}
		return clip.Source{Kind: clip.KindAttachment, Attachment: &att}, true
	}

	return clip.Source{}, false
}

// matchURL considers only the first URL in text. Without any http(s) URL,
// the first bare link on an allowed media host (youtu.be/abc) is taken and
// given an https scheme.
func (c *Classifier) matchURL(text string) (string, bool) {
	if raw := urlPattern.FindString(text); raw != "" {
		raw = trimTrailing(raw)
		u, err := url.Parse(raw)
		if err != nil || !hostAllowed(u.Hostname(), c.mediaHosts) {
			return "", false
		}
		return raw, true
	}

	for _, field := range strings.Fields(text) {
		field = trimTrailing(strings.TrimLeft(field, "<(\"'"))
		if strings.Contains(field, "://") {
			continue
		}
		raw := "https://" + field
		u, err := url.Parse(raw)
		if err != nil || (strings.Trim(u.Path, "/") == "" && u.RawQuery == "") {
			continue
		}
		if hostAllowed(u.Hostname(), c.mediaHosts) {
			return raw, true
		}
	}
	return "", false
}

// trimTrailing drops sentence punctuation after a link. A closing paren is
// kept while it balances an opening one inside the link.
func trimTrailing(raw string) string {
	for raw != "" {
		last := raw[len(raw)-1]
		switch {
		case strings.IndexByte(".,;:!?]}>\"'", last) >= 0:
		case last == ')' && strings.Count(raw, "(") < strings.Count(raw, ")"):
		default:
			return raw
		}
		raw = raw[:len(raw)-1]
	}
	return raw
}

func (c *Classifier) fromCDN(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return hostAllowed(u.Hostname(), c.cdnHosts)
}

// hostAllowed reports whether host is one of allowed or a subdomain of one.
func hostAllowed(host string, allowed []string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return false
	}
	for _, a := range allowed {
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

func normalizeHosts(hosts []string) []string {
	out := make([]string, 0, len(hosts))
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		h = strings.TrimPrefix(h, "www.")
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}

func toSet(values []string, extensions bool) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if extensions {
			v = strings.ToLower(v)
			if v != "" && !strings.HasPrefix(v, ".") {
				v = "." + v
			}
		}
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
