package guardian

import (
	"math"
	"time"
	"unicode"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

// Feature names. Weights are keyed by these and survive learning resets only
// as defaults.
const (
	featPayloadLength       = "payload_length"
	featPayloadComplexity   = "payload_complexity"
	featAgentSuspicion      = "agent_suspicion"
	featSourceReputation    = "source_reputation"
	featTimeAnomaly         = "time_anomaly"
	featRequestFrequency    = "request_frequency"
	featBehavioralDiversity = "behavioral_diversity"
	featHeaderAnomaly       = "header_anomaly"
)

var featureNames = []string{
	featPayloadLength,
	featPayloadComplexity,
	featAgentSuspicion,
	featSourceReputation,
	featTimeAnomaly,
	featRequestFrequency,
	featBehavioralDiversity,
	featHeaderAnomaly,
}

// defaultWeight applies to any feature without a learned weight.
const defaultWeight = 0.5

// extractFeatures builds the per-attack feature vector. Every value is in
// [0,1]. now is injected so the time-of-day feature is testable.
func extractFeatures(attack core.AttackDescriptor, mem *PatternMemory, now time.Time) map[string]float64 {
	f := make(map[string]float64, len(featureNames))

	f[featPayloadLength] = clamp01(float64(len(attack.Payload)) / 1000)
	f[featPayloadComplexity] = payloadComplexity(attack.Payload)

	if SuspiciousAgent(attack.UserAgent) {
		f[featAgentSuspicion] = 1
	}

	f[featSourceReputation] = clamp01(float64(mem.RecentCount(attack.SourceIP, time.Hour)) / 20)
	f[featRequestFrequency] = clamp01(float64(mem.RecentCount(attack.SourceIP, time.Minute)) / 10)
	f[featBehavioralDiversity] = clamp01(float64(mem.TypeDiversity(attack.SourceIP, time.Hour)) / 4)

	// Legitimate vault traffic is rare between 02:00 and 06:00 local time.
	if h := now.Hour(); h >= 2 && h < 6 {
		f[featTimeAnomaly] = 1
	}

	f[featHeaderAnomaly] = headerAnomaly(attack.Headers)

	return f
}

// payloadComplexity scores how many character classes the payload mixes.
// Plain text scores low; encoded or injected payloads mix classes.
func payloadComplexity(payload string) float64 {
	if payload == "" {
		return 0
	}
	var lower, upper, digit, punct, other bool
	for _, r := range payload {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			punct = true
		default:
			other = true
		}
	}
	classes := 0
	for _, b := range []bool{lower, upper, digit, punct, other} {
		if b {
			classes++
		}
	}
	return float64(classes) / 5
}

// headerAnomaly scores how far the header set is from a normal browser
// request. Missing staple headers pushes the score up.
func headerAnomaly(headers map[string]string) float64 {
	if len(headers) == 0 {
		return 1
	}
	staples := []string{"Accept", "Accept-Language", "Accept-Encoding"}
	missing := 0
	for _, h := range staples {
		if _, ok := headers[h]; !ok {
			missing++
		}
	}
	return float64(missing) / float64(len(staples))
}

// weightedSum combines features with learned weights. Unknown features get
// defaultWeight so a reset never zeroes the scorer.
func weightedSum(features map[string]float64, weights map[string]float64) float64 {
	var sum, total float64
	for name, value := range features {
		w, ok := weights[name]
		if !ok {
			w = defaultWeight
		}
		sum += w * value
		total += w
	}
	if total == 0 {
		return 0
	}
	return sum / total
}

// sigmoid squashes the normalized weighted sum into (0,1), steepened around
// the midpoint so mid-range inputs separate cleanly.
func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-6*(x-0.5)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
