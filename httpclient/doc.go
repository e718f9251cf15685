// Package httpclient provides the HTTP client used to talk to internal
// services such as the inference sidecar.
//
// Errors are classified into *Error values (timeout, connection, auth,
// not_found, validation, server). Streaming responses with content type
// text/event-stream are exposed through the sse subpackage.
//
//	client, err := httpclient.New(httpclient.Config{BaseURL: "http://localhost:8000"})
//	stream, err := client.DoStream(ctx, httpclient.Request{Method: http.MethodPost, Path: "/v1/transcriptions", Body: req})
//	defer stream.Close()
package httpclient
