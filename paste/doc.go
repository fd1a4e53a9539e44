// Package paste uploads render logs to a hastebin-compatible paste service.
//
// Upload returns an error for every way the upload can fall short. Callers
// that treat the link as optional collapse any error to "no URL".
package paste
