// internal/models/proposal.go
package models

// ProposalStatus mirrors the governance backend's lifecycle states.
type ProposalStatus string

const (
	ProposalStatusPending  ProposalStatus = "Pending"
	ProposalStatusActive   ProposalStatus = "Active"
	ProposalStatusApproved ProposalStatus = "Approved"
	ProposalStatusRejected ProposalStatus = "Rejected"
)

// Proposal is a governance proposal as served by the backend API.
// RiskScore is nil until an analysis has been written back.
type Proposal struct {
	ID               int64          `json:"id"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	ProposalType     string         `json:"proposalType"`
	RequestedAmount  float64        `json:"requestedAmount"`
	SubmitterAddress string         `json:"submitterAddress"`
	Status           ProposalStatus `json:"status"`
	RiskScore        *float64       `json:"riskScore"`
	CreatedAt        string         `json:"createdAt,omitempty"`
}

// Analyzed reports whether the proposal already carries an analysis result.
func (p *Proposal) Analyzed() bool {
	return p.RiskScore != nil
}

// NeedsAnalysis reports whether the scanner should pick this proposal up.
func (p *Proposal) NeedsAnalysis() bool {
	return p.Status == ProposalStatusPending && !p.Analyzed()
}
