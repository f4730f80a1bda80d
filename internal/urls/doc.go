// Package urls centralizes links to the Doorstep documentation site so
// CLI help and troubleshooting output stay consistent.
package urls
