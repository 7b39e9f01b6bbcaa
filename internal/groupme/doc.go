// Package groupme is a minimal client for the GroupMe v3 messages API.
//
// Only one endpoint is used:
//
//	GET /v3/groups/{group_id}/messages?token=..&limit=100[&after_id=..|&before_id=..]
//
// Client.Messages returns one decoded page. A 304 Not Modified answer, which
// the API sends when before_id is older than every message, is reported as
// an empty page. Any other non-200 status is an *APIError holding the
// response body.
//
// Records are decoded by ParseRecord. Attachments become one of the tagged
// variants in attachment.go; tags this package does not know decode to
// Unknown so callers can log and skip them.
package groupme
