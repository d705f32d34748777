// Package crawler implements the breadth-first crawl of a single news site:
// the frontier, the page processor that consults the article cache before
// fetching, and the scheduler that drives both.
package crawler
