// Package services wires the constructed orbd services into a single
// registry handed to the HTTP layer and the CLI.
package services
