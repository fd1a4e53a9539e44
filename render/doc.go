// Package render is a client for rtex-compatible LaTeX rendering services.
//
// A render is two calls: a form POST of the source to the endpoint, which
// answers with {status, filename|log}, then a GET of <endpoint>/<filename>.
// A status other than "success" is a Failure outcome carrying the compiler
// log, not an error. Non-2xx responses and network problems are returned as
// *TransportError.
package render
