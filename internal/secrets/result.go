package secrets

// Result is the outcome of scrubbing one piece of content.
type Result struct {
	Scrubbed      string
	TotalFindings int
	ByRule        map[string]int
}

// HasFindings reports whether anything was redacted.
func (r *Result) HasFindings() bool {
	return r != nil && r.TotalFindings > 0
}
