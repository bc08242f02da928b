// Package oracle defines the advisory claims-review and fraud-analysis
// collaborators. Their verdicts are informational only; settlement never
// consults them.
package oracle

import (
	"context"

	"github.com/shopspring/decimal"
)

// Review is a claims reviewer's verdict.
type Review struct {
	Approved          bool            `json:"approved"`
	ValidityScore     uint64          `json:"validity_score"`
	Reason            string          `json:"reason"`
	RecommendedPayout decimal.Decimal `json:"recommended_payout"`
}

// FraudReport is a fraud analyzer's verdict.
type FraudReport struct {
	Suspicious bool     `json:"suspicious"`
	FraudScore uint64   `json:"fraud_score"`
	Indicators []string `json:"indicators"`
	Confidence uint64   `json:"confidence"`
}

// ClaimReviewer reviews claim evidence.
type ClaimReviewer interface {
	ReviewClaim(ctx context.Context, policyID, eventID uint64, evidence string) (Review, error)
}

// FraudAnalyzer scores a claim for fraud.
type FraudAnalyzer interface {
	AnalyzeClaim(ctx context.Context, policyID, eventID uint64, claimant, data string) (FraudReport, error)
}

// Coverage looks up the coverage of a policy so the mock reviewer can
// recommend it.
type Coverage func(ctx context.Context, policyID uint64) (decimal.Decimal, error)

// MockReviewer approves every claim.
type MockReviewer struct {
	Coverage Coverage
}

func (m MockReviewer) ReviewClaim(ctx context.Context, policyID, _ uint64, _ string) (Review, error) {
	payout := decimal.Zero
	if m.Coverage != nil {
		c, err := m.Coverage(ctx, policyID)
		if err != nil {
			return Review{}, err
		}
		payout = c
	}
	return Review{
		Approved:          true,
		ValidityScore:     85,
		Reason:            "Evidence consistent with reported event",
		RecommendedPayout: payout,
	}, nil
}

// MockAnalyzer reports every claim as clean.
type MockAnalyzer struct{}

func (MockAnalyzer) AnalyzeClaim(context.Context, uint64, uint64, string, string) (FraudReport, error) {
	return FraudReport{
		Suspicious: false,
		FraudScore: 15,
		Indicators: []string{},
		Confidence: 90,
	}, nil
}
