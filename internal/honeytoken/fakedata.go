package honeytoken

import (
	"fmt"
	"math/rand"

	"github.com/vaultmaze-project/vaultmaze/internal/core"
)

// FakeCredential is the bait served to an attacker who lands on a honeypot.
// Values are plausible but lead nowhere.
type FakeCredential struct {
	Service  string `json:"service"`
	Username string `json:"username"`
	Password string `json:"password"`
	Notes    string `json:"notes,omitempty"`
}

// layerCredentials maps each maze layer to the flavor of bait it serves.
// Deeper layers serve higher-value-looking bait. Out-of-range layers cycle.
var layerCredentials = []FakeCredential{
	{Service: "webmail", Username: "jsmith", Password: "Summer2024!", Notes: "personal mailbox"},
	{Service: "ftp-legacy", Username: "ftpuser", Password: "ftp@ccess01", Notes: "old file drop"},
	{Service: "wiki-internal", Username: "kb.editor", Password: "W1ki$hare", Notes: "team wiki"},
	{Service: "jenkins", Username: "ci-deploy", Password: "Bu1ld&Ship", Notes: "deploy pipeline"},
	{Service: "staging-db", Username: "app_rw", Password: "st4g1ng-Pg#7", Notes: "postgres staging"},
	{Service: "aws-console", Username: "ops-admin", Password: "Cl0ud0ps!2024", Notes: "infra account"},
	{Service: "vault-master", Username: "root-keyholder", Password: "M@sterUnlock#99", Notes: "master recovery"},
}

// credentialForLayer returns the bait for a layer, salted with a random
// suffix so two honeypots on the same layer never serve identical bait.
// Deterministic under a seeded source.
func credentialForLayer(layer int, rng *rand.Rand) FakeCredential {
	if layer < 0 {
		layer = 0
	}
	cred := layerCredentials[layer%len(layerCredentials)]
	cred.Username = fmt.Sprintf("%s%02d", cred.Username, rng.Intn(100))
	return cred
}

// DecoyItem is one entry inside a decoy vault.
type DecoyItem struct {
	Kind  string `json:"kind"` // "password", "note", "credit_card"
	Title string `json:"title"`
	Value string `json:"value"`
}

// decoyTemplates holds per-category decoy contents. Categories mirror how
// real vaults are organized so a browsing attacker sees nothing odd.
var decoyTemplates = map[string][]DecoyItem{
	"personal": {
		{Kind: "password", Title: "Netflix", Value: "jsmith:Fl1x&Chill"},
		{Kind: "password", Title: "Amazon", Value: "jsmith:Pr1me$hopper"},
		{Kind: "note", Title: "WiFi", Value: "home network: BlueHouse / sunflower99"},
	},
	"work": {
		{Kind: "password", Title: "Okta SSO", Value: "j.smith@corp:W0rk$SO2024"},
		{Kind: "password", Title: "GitHub", Value: "jsmith-corp:gh-t0ken-repl"},
		{Kind: "note", Title: "VPN", Value: "vpn.corp.example profile in shared drive"},
	},
	"financial": {
		{Kind: "credit_card", Title: "Visa", Value: "4929 1877 2401 5532 exp 08/27 cvv 344"},
		{Kind: "password", Title: "Chase", Value: "jsmith77:B4nk&Safe!"},
		{Kind: "note", Title: "Wire template", Value: "routing 021000021 acct 7731920445"},
	},
	"critical": {
		{Kind: "password", Title: "Root CA passphrase", Value: "trust-anchor-9981"},
		{Kind: "note", Title: "Recovery codes", Value: "8841-2210 9920-1183 7345-0912"},
		{Kind: "password", Title: "Break-glass admin", Value: "bg-admin:Em3rgency!Only"},
	},
}

// decoyCategories lists valid categories in a stable order.
var decoyCategories = []string{"personal", "work", "financial", "critical"}

// decoyDataFor returns a copy of the template items for a category, shuffled
// so repeated decoys differ. Unknown categories fall back to "personal".
func decoyDataFor(category string, rng *rand.Rand) []DecoyItem {
	tmpl, ok := decoyTemplates[category]
	if !ok {
		tmpl = decoyTemplates["personal"]
	}
	items := make([]DecoyItem, len(tmpl))
	copy(items, tmpl)
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	return items
}

// Trigger condition vocabularies. Shallow layers use only the base set;
// deeper layers mix in advanced conditions.
var (
	baseConditions     = []string{"rapid_requests", "suspicious_pattern", "known_attacker_ip"}
	advancedConditions = []string{"ai_detected_anomaly", "behavioral_mismatch", "credential_replay"}
)

// conditionsForLayer picks trigger conditions for a honeypot at the given
// depth: 1-2 base conditions above ground, 2-6 mixed conditions deep in.
func conditionsForLayer(layer int, rng *rand.Rand) []string {
	if layer < 3 {
		n := 1 + rng.Intn(2)
		return pickConditions(baseConditions, n, rng)
	}
	pool := append(append([]string{}, baseConditions...), advancedConditions...)
	n := 2 + rng.Intn(5)
	return pickConditions(pool, n, rng)
}

// Trap activation vocabulary, ordered from the conditions every trap gets to
// the ones only deep layers carry. A trap at layer N carries the first N+2.
var trapConditions = []string{
	"wrong_credentials", "suspicious_behavior", "time_threshold",
	"pattern_match", "brute_force_attempt", "automated_access",
	"unusual_request_pattern", "credential_stuffing",
}

func trapConditionsForLayer(layer int) []string {
	n := layer + 2
	if n > len(trapConditions) {
		n = len(trapConditions)
	}
	out := make([]string, n)
	copy(out, trapConditions[:n])
	return out
}

// trapSeverityForLayer steps low→medium→high→critical every two layers.
func trapSeverityForLayer(layer int) core.Severity {
	severities := []core.Severity{core.SeverityLow, core.SeverityMedium, core.SeverityHigh, core.SeverityCritical}
	idx := layer / 2
	if idx > 3 {
		idx = 3
	}
	return severities[idx]
}

func pickConditions(pool []string, n int, rng *rand.Rand) []string {
	if n > len(pool) {
		n = len(pool)
	}
	idx := rng.Perm(len(pool))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}
