package server

// Version is the current version of the server.
// The version follows semantic versioning (MAJOR.MINOR.PATCH).
const Version = "0.1.0-alpha.1"

// APIVersion is the version of the public HTTP API surface.
const APIVersion = "0.1.0"
