// Package capture extracts values from step results for use in later steps.
//
// Every transport result (HTTP response, SQL result, RPC reply) is exposed
// as a Subject: a set of top-level fields queried with gjson paths, e.g.
//
//	extract:
//	  token: body.data.token
//	  session: cookies.SESSION
//	  total: rows.0.total
//
// Extracted values become variables visible to the steps that follow.
package capture
