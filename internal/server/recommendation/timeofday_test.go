package recommendation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"22:30", "22:30", true},
		{"7:05", "07:05", true},
		{"22:30:59", "22:30", true},
		{"10:30 PM", "22:30", true},
		{"10:30pm", "22:30", true},
		{"12:00 AM", "00:00", true},
		{"9 PM", "21:00", true},
		{"  06:45  ", "06:45", true},
		{"25:00", "", false},
		{"noon", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimeOfDay(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got.String())
			}
		})
	}
}

func TestTimeOfDay_JSONRoundTrip(t *testing.T) {
	var w SleepWindow
	require.NoError(t, json.Unmarshal([]byte(`{"start":"10:15 PM","end":"06:00"}`), &w))
	assert.Equal(t, TimeOfDay{22, 15}, w.Start)

	b, err := json.Marshal(w)
	require.NoError(t, err)
	assert.JSONEq(t, `{"start":"22:15","end":"06:00"}`, string(b))

	var bad TimeOfDay
	assert.Error(t, json.Unmarshal([]byte(`"later"`), &bad))
	assert.Error(t, json.Unmarshal([]byte(`7`), &bad))
}
