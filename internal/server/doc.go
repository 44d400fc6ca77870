// Package server exposes a page store over HTTP.
//
// A client first trades the admission token for a session with
// POST /api/v1/auth and then sends "Authorization: Bearer <session>" on
// every page route. Versions travel in the ETag response header and come
// back in If-Match; a stale or missing If-Match is answered with
// 412 Precondition Failed, a taken title with 409 Conflict and an unknown
// title with 404 Not Found.
package server
