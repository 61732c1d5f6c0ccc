package domain

// ProposalDraft is a transient, unpersisted candidate card produced by
// an analysis step. It exists only between analysis-result arrival and
// import confirmation or discard.
type ProposalDraft struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Summary           string   `json:"summary,omitempty"`
	SuggestedStatusID string   `json:"suggestedStatusId,omitempty"`
	SuggestedLabelIDs []string `json:"suggestedLabelIds,omitempty"`
	Subtasks          []string `json:"subtasks,omitempty"`
	Confidence        float64  `json:"confidence"`
}
