// Package latex implements the latex command.
//
// A query is stripped of any surrounding code fence (Normalize), hashed into
// a cache key, and looked up in the image cache. On a miss it is wrapped in
// the document Template and sent to the rendering service; a successful image
// is stored under the key. When the service rejects the input, its log is
// uploaded to a paste service and the reply is a failure notice linking to it.
//
// Handler produces exactly one Response per invocation: an image or a failure
// notice. Transport errors are returned to the host instead.
package latex
