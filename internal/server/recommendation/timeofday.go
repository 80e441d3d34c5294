package recommendation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date, rendered as HH:MM.
type TimeOfDay struct {
	Hour   int
	Minute int
}

var timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3 PM", "3PM"}

// ParseTimeOfDay accepts 24-hour ("22:30", "22:30:00") and 12-hour
// ("10:30 PM", "10:30pm", "10 PM") forms.
func ParseTimeOfDay(s string) (TimeOfDay, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return TimeOfDay{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, true
		}
	}
	return TimeOfDay{}, false
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, ok := ParseTimeOfDay(s)
	if !ok {
		return fmt.Errorf("invalid time of day %q", s)
	}
	*t = parsed
	return nil
}

type SleepWindow struct {
	Start TimeOfDay `json:"start"`
	End   TimeOfDay `json:"end"`
}
