package models

// SpinWheelEntry is one slice of the wheel. Higher weight means more common.
type SpinWheelEntry struct {
	Name   string     `json:"name"`
	Type   RewardType `json:"type"`
	Amount int64      `json:"amount,omitempty"`
	Weight float64    `json:"weight"`
}

// Reward converts the slice into the credit it grants.
func (e SpinWheelEntry) Reward() Reward {
	return Reward{Type: e.Type, Amount: e.Amount, Name: e.Name, Description: "Won: " + e.Name}
}

// DailySpinAllowance is what spinChances resets to on a new calendar day.
const DailySpinAllowance = 3

// SpinWheelRewards is the full wheel, in display order.
var SpinWheelRewards = []SpinWheelEntry{
	// Coins (most common)
	{Name: "10 Coins", Type: RewardTypeCoins, Amount: 10, Weight: 60},
	{Name: "20 Coins", Type: RewardTypeCoins, Amount: 20, Weight: 40},
	{Name: "50 Coins", Type: RewardTypeCoins, Amount: 50, Weight: 20},

	// Diamonds (rarer)
	{Name: "1 Diamond", Type: RewardTypeDiamond, Amount: 1, Weight: 15},
	{Name: "5 Diamonds", Type: RewardTypeDiamond, Amount: 5, Weight: 5},

	{Name: "Free Spin", Type: RewardTypeSpinChance, Amount: 1, Weight: 8},

	// Items (very rare)
	{Name: "Storra Sticker", Type: RewardTypeItem, Weight: 3},
	{Name: "Storra Shirt", Type: RewardTypeItem, Weight: 1},
	{Name: "₦100 Airtime", Type: RewardTypeItem, Weight: 0.5},
}

// SmallSpinRewards replaces the wheel once a user has spun too often.
var SmallSpinRewards = []SpinWheelEntry{
	{Name: "10 Coins", Type: RewardTypeCoins, Amount: 10, Weight: 70},
	{Name: "20 Coins", Type: RewardTypeCoins, Amount: 20, Weight: 30},
}
