package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	EntityPrefix     = "okte"
	CalculatorPrefix = "OKTE Calculator "
	MasterName       = "OKTE Master"
	maxDeviceName    = 20
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// SanitizeDeviceName turns a device name into an entity id fragment
func SanitizeDeviceName(name string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")
	if len(s) > maxDeviceName {
		s = s[:maxDeviceName]
	}
	if s == "" {
		return "device"
	}
	return s
}

// CalculatorNumber extracts N from "OKTE Calculator N", 1 otherwise
func CalculatorNumber(name string) int {
	rest, ok := strings.CutPrefix(name, CalculatorPrefix)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 1
	}
	return n
}

// NextCalculatorNumber returns the first free calculator number among the
// existing device names, filling gaps before appending
func NextCalculatorNumber(names []string) int {
	used := map[int]bool{}
	highest := 0
	for _, name := range names {
		rest, ok := strings.CutPrefix(name, CalculatorPrefix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		used[n] = true
		if n > highest {
			highest = n
		}
	}

	for i := 1; i <= highest; i++ {
		if !used[i] {
			return i
		}
	}
	return highest + 1
}

// CalculatorName is the default device name for calculator n
func CalculatorName(n int) string {
	return CalculatorPrefix + strconv.Itoa(n)
}

// EntityID builds "platform.okte_key" for the master (number 0) and
// "platform.okte_N_key" for calculators
func EntityID(platform string, number int, key string) string {
	if number <= 0 {
		return fmt.Sprintf("%s.%s_%s", platform, EntityPrefix, key)
	}
	return fmt.Sprintf("%s.%s_%d_%s", platform, EntityPrefix, number, key)
}

// EntityName is the display name of an entity. device is empty for the master.
func EntityName(device, label string, includeDevice bool) string {
	if !includeDevice {
		return label
	}
	if device == "" {
		return "OKTE - " + label
	}
	return "OKTE - " + device + " - " + label
}

// Entity keys of the master device
const (
	KeyConnectionStatus = "connection_status"
	KeyLastUpdate       = "last_update"
	KeyDataCount        = "data_count"
	KeyCurrentPrice     = "current_price"
	KeyPricesToday      = "prices_today"
	KeyPricesTomorrow   = "prices_tomorrow"
)

// Entity keys of a calculator device
const (
	KeyLowestWindow            = "lowest_price_window"
	KeyLowestWindowToday       = "lowest_price_window_today"
	KeyLowestWindowTomorrow    = "lowest_price_window_tomorrow"
	KeyHighestWindow           = "highest_price_window"
	KeyHighestWindowToday      = "highest_price_window_today"
	KeyHighestWindowTomorrow   = "highest_price_window_tomorrow"
	KeyDetectorLowest          = "detector_lowest_price"
	KeyDetectorLowestToday     = "detector_lowest_price_today"
	KeyDetectorLowestTomorrow  = "detector_lowest_price_tomorrow"
	KeyDetectorHighest         = "detector_highest_price"
	KeyDetectorHighestToday    = "detector_highest_price_today"
	KeyDetectorHighestTomorrow = "detector_highest_price_tomorrow"
	KeyLowestWindowSize        = "lowest_price_window_size"
	KeyHighestWindowSize       = "highest_price_window_size"
	KeyLowestSearchSize        = "lowest_price_search_window_size"
	KeyHighestSearchSize       = "highest_price_search_window_size"
)

// Label turns an entity key into a display label, "min_price_today" -> "Min Price Today"
func Label(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
