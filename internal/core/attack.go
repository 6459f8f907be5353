package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AttackType classifies an inbound hostile request. Classification comes from
// the upstream detector or from pattern matching; "unknown" is a valid and
// common value for first-contact traffic.
type AttackType string

const (
	AttackBruteForce         AttackType = "brute_force"
	AttackSQLInjection       AttackType = "sql_injection"
	AttackXSS                AttackType = "xss"
	AttackCredentialStuffing AttackType = "credential_stuffing"
	AttackDDoS               AttackType = "ddos"
	AttackDirectoryTraversal AttackType = "directory_traversal"
	AttackCommandInjection   AttackType = "command_injection"
	AttackUnknown            AttackType = "unknown"
)

// ParseAttackType normalizes a wire string into an AttackType.
func ParseAttackType(s string) AttackType {
	switch AttackType(s) {
	case AttackBruteForce, AttackSQLInjection, AttackXSS, AttackCredentialStuffing,
		AttackDDoS, AttackDirectoryTraversal, AttackCommandInjection:
		return AttackType(s)
	default:
		return AttackUnknown
	}
}

// AttackDescriptor is an immutable snapshot of a hostile request. It is built
// once at the edge and passed by value through scoring and routing; nothing
// downstream mutates it.
type AttackDescriptor struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Type      AttackType        `json:"type"`
	SourceIP  string            `json:"source_ip"`
	UserAgent string            `json:"user_agent,omitempty"`
	Target    string            `json:"target,omitempty"`
	Payload   string            `json:"payload,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// NewAttackDescriptor creates a descriptor with a generated ID and current
// timestamp. The headers map is copied so the caller's map stays theirs.
func NewAttackDescriptor(attackType AttackType, sourceIP, userAgent, target, payload string, headers map[string]string) AttackDescriptor {
	h := make(map[string]string, len(headers))
	for k, v := range headers {
		h[k] = v
	}
	return AttackDescriptor{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      attackType,
		SourceIP:  sourceIP,
		UserAgent: userAgent,
		Target:    target,
		Payload:   payload,
		Headers:   h,
	}
}

// Marshal serializes the descriptor to JSON.
func (a AttackDescriptor) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalAttackDescriptor deserializes an AttackDescriptor from JSON,
// normalizing the attack type and backfilling ID and timestamp for
// descriptors built by external publishers.
func UnmarshalAttackDescriptor(data []byte) (AttackDescriptor, error) {
	var a AttackDescriptor
	if err := json.Unmarshal(data, &a); err != nil {
		return AttackDescriptor{}, err
	}
	a.Type = ParseAttackType(string(a.Type))
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	return a, nil
}
