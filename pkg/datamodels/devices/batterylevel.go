package devices

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// batteryLevelHandler reads a battery level either as a fraction between 0 and 1
// or as a percentage, like 75%. Levels are always written as fractions.
type batteryLevelHandler struct{}

func (batteryLevelHandler) ToNative(_ context.Context, external string) (float64, error) {
	external = strings.TrimSpace(external)
	if external == "" {
		return 0, nil
	}

	scale := 1.0
	if pct, ok := strings.CutSuffix(external, "%"); ok {
		external = strings.TrimSpace(pct)
		scale = 100.0
	}

	level, err := strconv.ParseFloat(external, 64)
	if err != nil {
		return 0, err
	}

	level = level / scale

	if level < 0 || level > 1 {
		return 0, fmt.Errorf("battery level %s is out of range", external)
	}

	return level, nil
}

func (batteryLevelHandler) ToExternal(native float64) string {
	return strconv.FormatFloat(native, 'f', -1, 64)
}
