package domain

// CardQuery narrows a remote card listing. Zero value lists everything;
// board filtering itself happens client-side against the cache.
type CardQuery struct {
	StatusID string
	Assignee string
	Limit    int
}
