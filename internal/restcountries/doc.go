// Package restcountries provides an HTTP client for the REST Countries v3.1 API.
//
// # Overview
//
// The client issues read-only lookups (all, name, region, subregion,
// language, currency, capital and code) and normalizes the wire records into
// Country values. Map-shaped fields such as currencies and languages become
// slices ordered by key so rendering is deterministic.
//
// # Client Usage
//
//	client, err := restcountries.NewClient(restcountries.Options{})
//	if err != nil {
//		return err
//	}
//	countries, err := client.FetchByRegion(ctx, "Europe")
//
// Requests pass through a token bucket limiter. Code lookups for the same
// country are collapsed into a single request while one is in flight.
//
// # Errors
//
// Non-2xx responses return *APIError, whose message is taken from the JSON
// body when the API provides one. IsNotFound distinguishes "no match" from
// transport failures.
package restcountries
