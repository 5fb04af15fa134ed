package report

import (
	"strings"
	"time"

	"github.com/awaistahir/okte-windows/internal/calculator"
	"github.com/awaistahir/okte-windows/internal/engine"
	"github.com/awaistahir/okte-windows/internal/master"
	"github.com/awaistahir/okte-windows/internal/naming"
)

// Entity names one published value of a device
type Entity struct {
	Key  string `json:"key"`
	ID   string `json:"entity_id"`
	Name string `json:"name"`
}

// MasterStatus is the status view of a master device
type MasterStatus struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     master.Status `json:"status"`
	DataCount  int           `json:"data_count"`
	HasData    bool          `json:"has_data"`
	FetchedAt  *time.Time    `json:"last_update"`
	InProgress bool          `json:"in_progress"`
	Entities   []Entity      `json:"entities"`
}

func NewMasterStatus(m *master.Master) MasterStatus {
	ms := MasterStatus{
		ID:         m.ID(),
		Name:       m.Name(),
		Status:     m.Status(),
		InProgress: m.Running(),
		Entities: entities(0, "", m.IncludeDeviceName(),
			naming.KeyConnectionStatus, naming.KeyLastUpdate, naming.KeyDataCount,
			naming.KeyCurrentPrice, naming.KeyPricesToday, naming.KeyPricesTomorrow),
	}
	if snap := m.Snapshot(); snap != nil {
		fetched := snap.FetchedAt
		ms.HasData = true
		ms.DataCount = len(snap.All)
		ms.FetchedAt = &fetched
	}
	return ms
}

// Calculator is the window view of a calculator device
type Calculator struct {
	ID           string                    `json:"id"`
	Name         string                    `json:"name"`
	Number       int                       `json:"number"`
	Master       string                    `json:"master"`
	Available    bool                      `json:"available"`
	CalculatedAt *time.Time                `json:"calculated_at"`
	Settings     engine.CalculatorSettings `json:"settings"`
	Lowest       Selection                 `json:"lowest"`
	Highest      Selection                 `json:"highest"`
	Entities     []Entity                  `json:"entities"`

	LowestWindowSize  string `json:"lowest_price_window_size"`
	HighestWindowSize string `json:"highest_price_window_size"`
	LowestSearchSize  string `json:"lowest_price_search_window_size"`
	HighestSearchSize string `json:"highest_price_search_window_size"`
}

func NewCalculator(c *calculator.Calculator, loc *time.Location) Calculator {
	out := c.Outputs()
	number := naming.CalculatorNumber(c.Name())

	view := Calculator{
		ID:        c.ID(),
		Name:      c.Name(),
		Number:    number,
		Master:    c.MasterID(),
		Available: out.Available,
		Settings:  out.Settings,
		Lowest:    NewSelection(out.Lowest, loc),
		Highest:   NewSelection(out.Highest, loc),
		Entities: entities(number, c.Name(), c.IncludeDeviceName(),
			naming.KeyLowestWindow, naming.KeyLowestWindowToday, naming.KeyLowestWindowTomorrow,
			naming.KeyHighestWindow, naming.KeyHighestWindowToday, naming.KeyHighestWindowTomorrow,
			naming.KeyDetectorLowest, naming.KeyDetectorLowestToday, naming.KeyDetectorLowestTomorrow,
			naming.KeyDetectorHighest, naming.KeyDetectorHighestToday, naming.KeyDetectorHighestTomorrow,
			naming.KeyLowestWindowSize, naming.KeyHighestWindowSize,
			naming.KeyLowestSearchSize, naming.KeyHighestSearchSize),
	}

	// sizes follow the settings used, after sun times are applied
	low, high := out.Settings.Lowest, out.Settings.Highest
	view.LowestWindowSize = FormatHM(low.Length())
	view.HighestWindowSize = FormatHM(high.Length())
	view.LowestSearchSize = FormatHM(low.SearchSpan())
	view.HighestSearchSize = FormatHM(high.SearchSpan())
	view.Lowest.WindowSize, view.Lowest.WindowSearchSize = view.LowestWindowSize, view.LowestSearchSize
	view.Highest.WindowSize, view.Highest.WindowSearchSize = view.HighestWindowSize, view.HighestSearchSize

	if !out.CalculatedAt.IsZero() {
		at := out.CalculatedAt
		view.CalculatedAt = &at
	}
	return view
}

func entities(number int, device string, includeDevice bool, keys ...string) []Entity {
	out := make([]Entity, 0, len(keys))
	for _, key := range keys {
		platform := "sensor"
		if strings.HasPrefix(key, "detector_") {
			platform = "binary_sensor"
		}
		out = append(out, Entity{
			Key:  key,
			ID:   naming.EntityID(platform, number, key),
			Name: naming.EntityName(device, naming.Label(key), includeDevice),
		})
	}
	return out
}
