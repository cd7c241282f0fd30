// Copyright (c) 2024 Polimec Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package funding

import (
	"github.com/polimec/polimec-core/action"
)

type (
	// Tier is the ticket-size and multiplier policy of one investor tier.
	// USD amounts are whole dollars; MaxTicketUSD of 0 means unbounded.
	Tier struct {
		MinTicketUSD  uint64 `yaml:"minTicketUSD"`
		MaxTicketUSD  uint64 `yaml:"maxTicketUSD"`
		MaxMultiplier uint8  `yaml:"maxMultiplier"`
	}

	// Config carries the fundraising policy constants. The threshold
	// percentages are policy, not protocol logic, and live here on purpose.
	Config struct {
		// evaluation round
		MinEvaluationUSD         uint64 `yaml:"minEvaluationUSD"`
		MaxEvaluationsPerUser    uint64 `yaml:"maxEvaluationsPerUser"`
		MaxEvaluationsPerProject uint64 `yaml:"maxEvaluationsPerProject"`
		// success threshold as percent of the fundraising target
		EvaluationThresholdPercent uint64 `yaml:"evaluationThresholdPercent"`

		// funding outcome thresholds as percent of the target reached
		SlashThresholdPercent  uint64 `yaml:"slashThresholdPercent"`
		RewardThresholdPercent uint64 `yaml:"rewardThresholdPercent"`
		// portion of the original bond slashed, in percent
		SlashPercent uint64 `yaml:"slashPercent"`
		// evaluator reward pool as percent of the total token allocation
		RewardFeePercent uint64 `yaml:"rewardFeePercent"`
		// portion of the reward pool reserved for early evaluators, in percent
		EarlyEvaluatorPoolPercent uint64 `yaml:"earlyEvaluatorPoolPercent"`

		// round durations in blocks
		EvaluationDuration  uint64 `yaml:"evaluationDuration"`
		AuctionInitDuration uint64 `yaml:"auctionInitDuration"`
		OpeningDuration     uint64 `yaml:"openingDuration"`
		ClosingDuration     uint64 `yaml:"closingDuration"`
		CommunityDuration   uint64 `yaml:"communityDuration"`
		RemainderDuration   uint64 `yaml:"remainderDuration"`
		DecisionDuration    uint64 `yaml:"decisionDuration"`
		SettlementDelay     uint64 `yaml:"settlementDelay"`

		// auction bucket geometry, in percent of the auction allocation and of
		// the minimum price
		BucketDeltaAmountPercent uint64 `yaml:"bucketDeltaAmountPercent"`
		BucketDeltaPricePercent  uint64 `yaml:"bucketDeltaPricePercent"`

		// vesting duration added per multiplier step, in blocks
		VestingBlocksPerMultiplier uint64 `yaml:"vestingBlocksPerMultiplier"`

		// scheduled-update queue bounds
		MaxUpdatesPerBlock uint64 `yaml:"maxUpdatesPerBlock"`
		MaxScheduleRetries uint64 `yaml:"maxScheduleRetries"`

		// native bonding asset
		NativeAsset    string `yaml:"nativeAsset"`
		NativeDecimals uint8  `yaml:"nativeDecimals"`
		// protocol treasury receiving slashed bonds
		Treasury string `yaml:"treasury"`

		// decimals of the accepted funding assets
		AssetDecimals map[string]uint8 `yaml:"assetDecimals"`

		Retail        Tier `yaml:"retail"`
		Professional  Tier `yaml:"professional"`
		Institutional Tier `yaml:"institutional"`
	}
)

// DefaultConfig is the default fundraising policy
var DefaultConfig = Config{
	MinEvaluationUSD:           100,
	MaxEvaluationsPerUser:      4,
	MaxEvaluationsPerProject:   256,
	EvaluationThresholdPercent: 10,

	SlashThresholdPercent:     33,
	RewardThresholdPercent:    90,
	SlashPercent:              20,
	RewardFeePercent:          5,
	EarlyEvaluatorPoolPercent: 20,

	EvaluationDuration:  28800,
	AuctionInitDuration: 2400,
	OpeningDuration:     14400,
	ClosingDuration:     7200,
	CommunityDuration:   14400,
	RemainderDuration:   7200,
	DecisionDuration:    7200,
	SettlementDelay:     1200,

	BucketDeltaAmountPercent: 10,
	BucketDeltaPricePercent:  10,

	VestingBlocksPerMultiplier: 43200,

	MaxUpdatesPerBlock: 16,
	MaxScheduleRetries: 10,

	NativeAsset:    "PLMC",
	NativeDecimals: 10,
	Treasury:       "",

	AssetDecimals: map[string]uint8{
		"USDT": 6,
		"USDC": 6,
		"DOT":  10,
	},

	Retail:        Tier{MinTicketUSD: 10, MaxTicketUSD: 0, MaxMultiplier: 5},
	Professional:  Tier{MinTicketUSD: 5000, MaxTicketUSD: 0, MaxMultiplier: 10},
	Institutional: Tier{MinTicketUSD: 5000, MaxTicketUSD: 0, MaxMultiplier: 25},
}

// TierPolicy returns the ticket policy of the given investor tier
func (cfg *Config) TierPolicy(tier action.InvestorTier) Tier {
	switch tier {
	case action.Professional:
		return cfg.Professional
	case action.Institutional:
		return cfg.Institutional
	default:
		return cfg.Retail
	}
}

// ticketRange converts a tier policy into the USD18 bounds frozen on a project
func ticketRange(t Tier) TicketRange {
	return TicketRange{
		MinUSD: WholeUSD(t.MinTicketUSD),
		MaxUSD: WholeUSD(t.MaxTicketUSD),
		MaxMul: t.MaxMultiplier,
	}
}
