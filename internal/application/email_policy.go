package application

import (
	"net/mail"
	"strings"
)

// EmailPolicy decides whether requesters from an email domain may reserve.
type EmailPolicy interface {
	IsAcceptedDomain(email string) bool
}

// AllowedDomains accepts addresses whose domain is in the list. An empty list
// accepts every domain.
type AllowedDomains []string

// NewAllowedDomains normalises domains to lower case without a leading "@".
func NewAllowedDomains(domains []string) AllowedDomains {
	out := make(AllowedDomains, 0, len(domains))
	for _, domain := range domains {
		domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "@")
		if domain != "" {
			out = append(out, domain)
		}
	}
	return out
}

// IsAcceptedDomain implements EmailPolicy.
func (d AllowedDomains) IsAcceptedDomain(email string) bool {
	if len(d) == 0 {
		return true
	}
	domain := emailDomain(email)
	if domain == "" {
		return false
	}
	for _, allowed := range d {
		if domain == allowed {
			return true
		}
	}
	return false
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// normalizeEmail returns the bare lower-cased address, or false when email is
// not a single plain address.
func normalizeEmail(email string) (string, bool) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Name != "" || addr.Address != email {
		return "", false
	}
	return strings.ToLower(addr.Address), true
}
