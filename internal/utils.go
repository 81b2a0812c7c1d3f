package internal

import "strings"

func StringContains(s []string, e string) bool {
	for _, item := range s {
		if item == e {
			return true
		}
	}
	return false
}

// RemovePassword masks the password part of a URI (or user:pass@host) so it
// can be logged.
func RemovePassword(uri string) string {
	rest := uri
	if i := strings.Index(uri, "://"); i >= 0 {
		rest = uri[i+3:]
	}
	at := strings.LastIndex(rest, "@")
	if at <= 0 {
		return uri
	}
	sp := strings.Index(rest[:at], ":")
	if sp < 0 {
		return uri
	}
	return strings.Replace(uri, rest[sp:at], ":****", 1)
}
