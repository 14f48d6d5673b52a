// Package fragment defines the data model shared by the hygiene engine and
// every surface built on top of it. Field names carried in JSON tags are the
// wire contract: the HTTP API, the scripting-host extension, and the browser
// module all serialize these types unchanged.
package fragment
