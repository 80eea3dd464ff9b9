package sales

import "github.com/shopspring/decimal"

// ExclusionReason explains why a sale is not commission eligible.
type ExclusionReason string

const (
	ExclusionChannelNotEligible   ExclusionReason = "channelNotEligible"
	ExclusionAmountBelowThreshold ExclusionReason = "amountBelowThreshold"
	ExclusionProductExcluded      ExclusionReason = "productExcluded"
)

// Classification is the commission verdict for one sale.
type Classification struct {
	CommissionEligible bool             `json:"commission_eligible"`
	ExclusionReason    *ExclusionReason `json:"exclusion_reason"`
}

// commissionChannels are the channels whose sales earn commission.
var commissionChannels = map[SaleChannel]bool{
	ChannelAgent: true,
	ChannelStore: true,
}

// Classify decides commission eligibility for a sale. Pure function over
// stored data; excluded products are supplied by the caller's configuration.
func Classify(sale *Sale, amountThreshold decimal.Decimal, excludedProducts map[string]bool) Classification {
	if excludedProducts[sale.ProductID] {
		reason := ExclusionProductExcluded
		return Classification{ExclusionReason: &reason}
	}
	if !commissionChannels[sale.SaleChannel] {
		reason := ExclusionChannelNotEligible
		return Classification{ExclusionReason: &reason}
	}
	if sale.TotalAmount.LessThan(amountThreshold) {
		reason := ExclusionAmountBelowThreshold
		return Classification{ExclusionReason: &reason}
	}
	return Classification{CommissionEligible: true}
}
