package sales

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	threshold := decimal.NewFromInt(100)
	excluded := map[string]bool{"SKU-PROMO": true}

	mustSale := func(productID string, quantity int, unitPrice float64, channel SaleChannel) *Sale {
		sale, err := NewSale(productID, quantity, decimal.NewFromFloat(unitPrice), uuid.New(), channel)
		require.NoError(t, err)
		return sale
	}

	tests := []struct {
		name     string
		sale     *Sale
		eligible bool
		reason   *ExclusionReason
	}{
		{
			name:     "eligible agent sale",
			sale:     mustSale("SKU-100", 2, 60, ChannelAgent),
			eligible: true,
		},
		{
			name:     "eligible store sale at threshold",
			sale:     mustSale("SKU-100", 1, 100, ChannelStore),
			eligible: true,
		},
		{
			name:   "online channel not eligible",
			sale:   mustSale("SKU-100", 5, 100, ChannelOnline),
			reason: reasonPtr(ExclusionChannelNotEligible),
		},
		{
			name:   "wholesale channel not eligible",
			sale:   mustSale("SKU-100", 5, 100, ChannelWholesale),
			reason: reasonPtr(ExclusionChannelNotEligible),
		},
		{
			name:   "amount below threshold",
			sale:   mustSale("SKU-100", 1, 99.99, ChannelAgent),
			reason: reasonPtr(ExclusionAmountBelowThreshold),
		},
		{
			name:   "excluded product wins over channel",
			sale:   mustSale("SKU-PROMO", 10, 500, ChannelOnline),
			reason: reasonPtr(ExclusionProductExcluded),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.sale, threshold, excluded)
			assert.Equal(t, tt.eligible, got.CommissionEligible)
			if tt.reason == nil {
				assert.Nil(t, got.ExclusionReason)
			} else {
				require.NotNil(t, got.ExclusionReason)
				assert.Equal(t, *tt.reason, *got.ExclusionReason)
			}
		})
	}
}

func reasonPtr(r ExclusionReason) *ExclusionReason {
	return &r
}
