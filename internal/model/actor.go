package model

// Actor identifies who performs a write and from where. Handlers build it
// from the verified access token and the client IP and pass it explicitly
// into every service call; it ends up in the audit columns.
type Actor struct {
	UserID   string
	Username string
	IP       string
}

// System is the actor recorded for changes made by background jobs.
var System = Actor{UserID: "SYSTEM", Username: "system", IP: "127.0.0.1"}
