// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package energy

import (
	"fmt"
	"math/rand/v2"
)

// Equivalent converts saved watt-hours into an everyday comparison.
type Equivalent struct {
	Unit      string
	WhPerUnit float64
	Format    string // fmt verb applied to saved / WhPerUnit
	Emoji     string
}

// Equivalents is the fixed comparison table.
var Equivalents = []Equivalent{
	{"LED bulb (10W)", 10.0, "You've powered a LED bulb for %.1f hours", "💡"},
	{"smartphone charge", 12.0, "You've charged a smartphone %.2f times", "📱"},
	{"laptop work (50W)", 50.0, "You've powered a laptop for %.1f hours", "💻"},
	{"Wi-Fi router (6W)", 6.0, "You've kept Wi-Fi running for %.1f hours", "📡"},
	{"TV streaming (100W)", 100.0, "You've streamed TV for %.1f hours", "📺"},
	{"coffee brew (800W for 5min)", 66.7, "You've brewed %.1f cups of coffee", "☕"},
	{"microwave heating (1000W)", 16.7, "You've microwaved food for %.0f minutes", "🍲"},
	{"electric kettle boil (2000W for 3min)", 100.0, "You've boiled water %.1f times", "🫖"},
	{"desktop PC (200W)", 200.0, "You've powered a desktop PC for %.1f hours", "🖥️"},
	{"gaming console (150W)", 150.0, "You've gamed for %.1f hours", "🎮"},
	{"tablet charge (18Wh)", 18.0, "You've charged a tablet %.2f times", "📱"},
	{"room fan (75W)", 75.0, "You've run a fan for %.1f hours", "🌀"},
	{"e-bike mile (15Wh/mi)", 15.0, "You've e-biked %.1f miles", "🚴"},
	{"EV mile (300Wh/mi)", 300.0, "You've offset %.2f miles of EV driving", "🚗"},
	{"CO₂ (0.4 kg/kWh grid avg)", 2500.0, "You've prevented %.1fg of CO₂", "🌍"},
}

// NoSavingsMessage is shown before any energy has been saved.
const NoSavingsMessage = "Start chatting to make an impact!"

// Describe renders savedWh in terms of eq.
func (eq Equivalent) Describe(savedWh float64) string {
	if savedWh <= 0 {
		return NoSavingsMessage
	}
	value := savedWh / eq.WhPerUnit
	switch {
	case value < 0.01:
		return eq.Emoji + " You've saved just a few seconds worth"
	case value > 1000:
		return eq.Emoji + " You've made a HUGE impact!"
	default:
		return eq.Emoji + " " + fmt.Sprintf(eq.Format, value)
	}
}

// RandomEquivalent describes savedWh using a randomly chosen comparison.
func RandomEquivalent(savedWh float64) string {
	if savedWh <= 0 {
		return NoSavingsMessage
	}
	return Equivalents[rand.IntN(len(Equivalents))].Describe(savedWh)
}
