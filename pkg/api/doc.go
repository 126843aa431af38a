// Package api assembles the HTTP server.
//
// # Overview
//
// NewServer wires the auth, attribute, and recipe handlers onto a gorilla/mux
// router behind a shared middleware stack: request ids, structured request
// logging, panic recovery, a request body size cap, and prometheus metrics.
// Account creation and token issuance are public; everything else sits behind
// bearer-token authentication.
//
//	server, err := api.NewServer(api.Options{DB: db, Logger: logger, MediaRoot: "/vol/web/media"})
//	http.ListenAndServe(":8080", server)
//
// Health probes and the metrics endpoint are served on a separate port; see
// cmd/cookbook.
package api
