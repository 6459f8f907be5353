package guardian

import (
	"regexp"
	"strings"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

// Pattern is a compiled attack classifier. BaseConfidence is the confidence
// assigned to a fresh match before learned pattern data adjusts it.
type Pattern struct {
	Name           string
	Type           core.AttackType
	Severity       core.Severity
	BaseConfidence float64
	Regex          *regexp.Regexp
}

func compilePatterns() []Pattern {
	return []Pattern{
		{Name: "sqli_union_select", Type: core.AttackSQLInjection, Severity: core.SeverityHigh, BaseConfidence: 0.85,
			Regex: regexp.MustCompile(`(?i)(\bunion\b\s+(all\s+)?select\b)`)},
		{Name: "sqli_or_true", Type: core.AttackSQLInjection, Severity: core.SeverityHigh, BaseConfidence: 0.85,
			Regex: regexp.MustCompile(`(?i)(\bor\b\s+[\d'"]+\s*=\s*[\d'"]+|'\s*or\s*'[^']*'\s*=\s*'[^']*')`)},
		{Name: "sqli_stacked", Type: core.AttackSQLInjection, Severity: core.SeverityCritical, BaseConfidence: 0.85,
			Regex: regexp.MustCompile(`(?i);\s*(drop|alter|truncate|delete\s+from|update\s+\w+\s+set|insert\s+into|exec|execute)\b`)},
		{Name: "sqli_comment_tail", Type: core.AttackSQLInjection, Severity: core.SeverityMedium, BaseConfidence: 0.85,
			Regex: regexp.MustCompile(`(?i)('|\d)\s*(--|#)\s*$`)},

		{Name: "xss_script_tag", Type: core.AttackXSS, Severity: core.SeverityHigh, BaseConfidence: 0.80,
			Regex: regexp.MustCompile(`(?i)<\s*script[^>]*>`)},
		{Name: "xss_event_handler", Type: core.AttackXSS, Severity: core.SeverityHigh, BaseConfidence: 0.80,
			Regex: regexp.MustCompile(`(?i)\bon(error|load|click|mouseover|focus|submit)\s*=`)},
		{Name: "xss_javascript_uri", Type: core.AttackXSS, Severity: core.SeverityMedium, BaseConfidence: 0.80,
			Regex: regexp.MustCompile(`(?i)(javascript|vbscript)\s*:`)},

		{Name: "brute_force_login", Type: core.AttackBruteForce, Severity: core.SeverityMedium, BaseConfidence: 0.75,
			Regex: regexp.MustCompile(`(?i)(password|passwd|login|signin|auth)`)},

		{Name: "credential_stuffing", Type: core.AttackCredentialStuffing, Severity: core.SeverityMedium, BaseConfidence: 0.70,
			Regex: regexp.MustCompile(`(?i)(credential|combo.?list|account.?check)`)},

		{Name: "directory_traversal", Type: core.AttackDirectoryTraversal, Severity: core.SeverityMedium, BaseConfidence: 0.60,
			Regex: regexp.MustCompile(`(\.\./|\.\.\\|%2e%2e%2f|%252e)`)},

		{Name: "cmdi_shell", Type: core.AttackCommandInjection, Severity: core.SeverityCritical, BaseConfidence: 0.65,
			Regex: regexp.MustCompile(`(\||;|&&|` + "`" + `|\$\()\s*(cat|ls|whoami|id|uname|wget|curl|nc|bash|sh)\b`)},
	}
}

// unknownConfidence is the floor assigned to a pattern no classifier has
// matched and no outcome history covers.
const unknownConfidence = 0.3

// PatternMatch is the outcome of classifying one attack.
type PatternMatch struct {
	Name       string
	Type       core.AttackType
	Severity   core.Severity
	Confidence float64
}

// classify runs the payload and target through the pattern table and returns
// the highest-confidence match. A declared attack type on the descriptor wins
// a tie against regex matches of other types.
func classify(patterns []Pattern, attack core.AttackDescriptor) PatternMatch {
	haystack := attack.Payload + " " + attack.Target

	best := PatternMatch{Name: "unclassified", Type: core.AttackUnknown, Severity: core.SeverityLow, Confidence: unknownConfidence}
	for _, p := range patterns {
		if !p.Regex.MatchString(haystack) {
			continue
		}
		conf := p.BaseConfidence
		if p.Type == attack.Type {
			conf += 0.05
			if conf > 1 {
				conf = 1
			}
		}
		if conf > best.Confidence {
			best = PatternMatch{Name: p.Name, Type: p.Type, Severity: p.Severity, Confidence: conf}
		}
	}
	return best
}

// suspiciousUserAgents flags automation and scanner tooling.
var suspiciousUserAgents = regexp.MustCompile(`(?i)(bot|crawler|spider|scanner|nmap|sqlmap|nikto|dirbuster|gobuster|python-requests|curl|wget|headless|phantomjs|selenium)`)

// SuspiciousAgent reports whether the user agent looks like tooling rather
// than a browser. An empty agent counts as suspicious.
func SuspiciousAgent(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return true
	}
	return suspiciousUserAgents.MatchString(userAgent)
}
