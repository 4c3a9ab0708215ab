// Command streamauthd serves the streaming platform's authentication API.
//
// Configuration comes from the environment (see internal/envconfig). The
// serve command starts the HTTP API and, when METRICS_ADDR is set, a
// Prometheus endpoint. hash-password prints an argon2id hash for the users
// file or OWNER_PASSWORD. loadtest drives the auth manager against Redis or
// an embedded miniredis.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
