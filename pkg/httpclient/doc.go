// Package httpclient provides a typed Go client for the chunked upload HTTP
// API. Use [New] to create a client pointed at the API endpoint (for example
// "http://localhost:8080/api/chunker").
//
// # Uploads
//
// [Client.Upload] and [Client.UploadFile] split content into chunks and send
// them concurrently under one chunk identifier. The response to the chunk
// which completes the upload carries the identifier and path of the
// assembled file.
//
// [Client.ReceiveChunk] sends a single chunk. The client satisfies the same
// coordinator interface as the server side, so code written against a local
// coordinator can be pointed at a remote one.
//
// # Sessions
//
// [Client.GetSession], [Client.ListSessions] and [Client.CancelUpload]
// inspect and cancel uploads in progress.
package httpclient
