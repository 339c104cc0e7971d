package httprecorder

import (
	gocmp "github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// IgnoreHeaders drops the named headers from a comparison of http.Header values.
func IgnoreHeaders(headers ...string) gocmp.Option {
	return cmpopts.IgnoreMapEntries(func(h string, _ []string) bool {
		return contains(headers, h)
	})
}

// OnlyHeaders compares just the named headers.
func OnlyHeaders(headers ...string) gocmp.Option {
	return cmpopts.IgnoreMapEntries(func(h string, _ []string) bool {
		return !contains(headers, h)
	})
}

func contains(headers []string, h string) bool {
	for _, header := range headers {
		if header == h {
			return true
		}
	}
	return false
}
