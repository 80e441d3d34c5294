// Package recommendation turns a Worker Agent memory snapshot into the
// UI-ready Recommendation. Extract is pure: no I/O, no shared state, and it
// never fails. Anything missing or malformed simply leaves a field absent.
package recommendation

import (
	"math"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/sleepsupervisor/internal/server/worker"
)

// Recommendation has independently optional fields. Nil means absent;
// lists are never empty when present.
type Recommendation struct {
	SleepScore     *float64     `json:"sleep_score"`
	Confidence     *float64     `json:"confidence"`
	Issues         []string     `json:"issues"`
	SleepWindow    *SleepWindow `json:"sleep_window"`
	CaffeineCutoff *TimeOfDay   `json:"caffeine_cutoff"`
	Tips           []string     `json:"tips"`
}

// Empty reports whether every field is absent.
func (r Recommendation) Empty() bool {
	return r.SleepScore == nil && r.Confidence == nil && r.Issues == nil &&
		r.SleepWindow == nil && r.CaffeineCutoff == nil && r.Tips == nil
}

// Extract reads LTM first and then overlays STM, so a field present in both
// takes the STM value. A nil snapshot yields an all-absent Recommendation.
func Extract(snap *worker.MemorySnapshot) Recommendation {
	var r Recommendation
	if snap == nil {
		return r
	}

	overlay(&r, snap.LTM)
	for _, view := range stmViews(snap.STM) {
		overlay(&r, view)
	}
	return r
}

// stmViews orders the STM sources from oldest to newest: the STM object
// itself, its last recorded session, then latest_analysis.
func stmViews(stm map[string]any) []map[string]any {
	if stm == nil {
		return nil
	}
	views := []map[string]any{stm}
	if sessions, ok := stm["sessions"].([]any); ok && len(sessions) > 0 {
		if last, ok := sessions[len(sessions)-1].(map[string]any); ok {
			views = append(views, last)
		}
	}
	if latest, ok := stm["latest_analysis"].(map[string]any); ok {
		views = append(views, latest)
	}
	return views
}

func overlay(r *Recommendation, src map[string]any) {
	if src == nil {
		return
	}
	trends, _ := src["trends"].(map[string]any)
	recs, _ := src["recommendations"].(map[string]any)

	if v, ok := firstBounded(0, 100, src["sleep_score"], trends["avg_sleep_score"]); ok {
		r.SleepScore = &v
	}
	if v, ok := firstBounded(0, 1, src["confidence"], trends["confidence"]); ok {
		r.Confidence = &v
	}
	if issues, ok := extractIssues(src); ok {
		r.Issues = issues
	}
	if w, ok := extractWindow(recs); ok {
		r.SleepWindow = &w
	}
	if s, ok := recs["caffeine_cutoff"].(string); ok {
		if t, ok := ParseTimeOfDay(s); ok {
			r.CaffeineCutoff = &t
		}
	}
	if tips := extractTips(src["personalized_tips"]); tips != nil {
		r.Tips = tips
	} else if tips := extractTips(recs["tips"]); tips != nil {
		r.Tips = tips
	}
}

// firstBounded returns the first candidate that is a finite number within
// [lo, hi].
func firstBounded(lo, hi float64, candidates ...any) (float64, bool) {
	for _, c := range candidates {
		if v, ok := toFloat(c); ok && v >= lo && v <= hi {
			return v, true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case interface{ Float64() (float64, error) }:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// extractIssues reports ok when src says something about issues. An explicit
// issues list, even an empty one, replaces whatever an older source said.
func extractIssues(src map[string]any) ([]string, bool) {
	switch src["issues"].(type) {
	case []any, []string:
		return stringList(src["issues"]), true
	}

	patterns, ok := src["patterns"].([]any)
	if !ok {
		return nil, false
	}
	var out []string
	for _, p := range patterns {
		switch p := p.(type) {
		case map[string]any:
			typ, _ := p["type"].(string)
			typ = strings.ToLower(typ)
			if typ != "issue" && !strings.Contains(typ, "problem") && !strings.Contains(typ, "warning") {
				continue
			}
			if d, ok := p["description"].(string); ok && strings.TrimSpace(d) != "" {
				out = append(out, strings.TrimSpace(d))
			}
		case string:
			lower := strings.ToLower(p)
			if strings.Contains(lower, "issue") || strings.Contains(lower, "problem") {
				out = append(out, strings.TrimSpace(p))
			}
		}
	}
	return out, out != nil
}

func extractWindow(recs map[string]any) (SleepWindow, bool) {
	if recs == nil {
		return SleepWindow{}, false
	}

	var start, end string
	switch sw := recs["sleep_window"].(type) {
	case map[string]any:
		start, _ = sw["start"].(string)
		end, _ = sw["end"].(string)
	case string:
		start, end, _ = strings.Cut(sw, "-")
	}
	if start == "" || end == "" {
		start, _ = recs["bedtime"].(string)
		end, _ = recs["wake_time"].(string)
	}

	s, ok1 := ParseTimeOfDay(start)
	e, ok2 := ParseTimeOfDay(end)
	if !ok1 || !ok2 {
		return SleepWindow{}, false
	}
	return SleepWindow{Start: s, End: e}, true
}

func extractTips(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return stringList(v)
	}
	var out []string
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			for _, k := range []string{"tip", "text"} {
				if s, ok := t[k].(string); ok && strings.TrimSpace(s) != "" {
					out = append(out, strings.TrimSpace(s))
					break
				}
			}
		}
	}
	return out
}

// stringList keeps the non-blank strings of a JSON list; nil when none.
func stringList(v any) []string {
	var out []string
	switch items := v.(type) {
	case []any:
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range items {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	}
	return out
}
