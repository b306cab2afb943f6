// Command agendalens runs the council-meeting ingestion pipeline: scrape,
// summarize and feedback sweeps plus the read-API server.
package main
