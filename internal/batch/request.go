// Package batch runs the request-level services: variant batch ranking,
// single-query literature ranking, document fetch and batch status.
//
// Every service answers from the cache when it can, records its reports in
// the per-service error logs and renders the JSON body returned to callers.
// A fatal report replaces the whole body with an error envelope.
package batch

import (
	"net/url"

	"github.com/Aman-CERP/variomes/internal/config"
	"github.com/Aman-CERP/variomes/internal/query"
)

// Request is one call to a batch service.
type Request struct {
	// UniqueID names the run. An empty id is generated.
	UniqueID string
	// Input holds the raw query parameters.
	Input query.Input
	// File names an uploaded variant list under the API files directory.
	// When set it replaces Input.GenVars as the source of topics.
	File string
	// Light omits publications from variant batch outputs.
	Light bool
	// Key is the canonical request used as the TTL cache key. An empty key
	// disables the by-request cache.
	Key string
}

// volatileParams do not change a result and are left out of request keys.
var volatileParams = map[string]bool{
	"uniqueId": true,
	"log":      true,
	"ip":       true,
}

// RequestKey renders params as a canonical query string: volatile
// parameters dropped, keys sorted, values kept in request order.
func RequestKey(params url.Values) string {
	kept := make(url.Values, len(params))
	for k, v := range params {
		if volatileParams[k] {
			continue
		}
		kept[k] = v
	}
	return kept.Encode()
}

// RequestFromParams builds a Request from HTTP-style parameters.
func RequestFromParams(params url.Values) Request {
	get := func(name string) string { return params.Get(name) }
	_, light := params["light"]
	return Request{
		UniqueID: get("uniqueId"),
		Input: query.Input{
			IDs:        splitIDs(firstNonEmpty(get("ids"), get("id"))),
			Collection: firstNonEmpty(get("collections"), get("collection")),
			Disease:    get("disease"),
			GenVars:    get("genvars"),
			Gender:     get("gender"),
			Age:        get("age"),
		},
		File:  get("file"),
		Light: light,
		Key:   RequestKey(params),
	}
}

func splitIDs(s string) []string {
	return config.SplitParam(s, ";")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
