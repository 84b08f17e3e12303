// Package services provides the error taxonomy and context plumbing shared
// by the pipeline stages and external service clients.
package services
