// Package extraction defines the core types, collaborator interfaces, and error
// kinds shared by the fetchers, the extractor, the rate limiter, and the fallback
// pipeline of the text-extraction service.
package extraction
