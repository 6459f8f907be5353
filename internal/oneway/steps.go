package oneway

import "fmt"

// Exit verification step names. Steps complete strictly in the order
// requiredSteps returns them.
const (
	StepUserAuth          = "user_authentication"
	StepDeviceVerify      = "device_verification"
	StepTimeWindow        = "time_window_check"
	StepTwoFactor         = "two_factor_authentication"
	StepBiometric         = "biometric_verification"
	StepHardwareKey       = "hardware_key_verification"
	StepSecurityQuestions = "security_questions"
	StepSession           = "session_verification"
)

// baseSteps apply to every exit regardless of data type.
var baseSteps = []string{StepUserAuth, StepDeviceVerify, StepTimeWindow}

// requiredSteps returns the ordered verification ladder for a data type.
// Bulk exports ("all") climb the full ladder.
func requiredSteps(dataType string) []string {
	steps := make([]string, len(baseSteps))
	copy(steps, baseSteps)
	switch dataType {
	case "password":
		steps = append(steps, StepTwoFactor)
	case "note":
		steps = append(steps, StepBiometric)
	case "credit_card":
		steps = append(steps, StepHardwareKey, StepTwoFactor)
	case "all":
		steps = append(steps, StepBiometric, StepHardwareKey, StepSecurityQuestions, StepTwoFactor, StepSession)
	}
	return steps
}

// StepVerifier checks the evidence supplied for one verification step.
// The time window step is never delegated here; the service owns it.
type StepVerifier interface {
	Verify(step, userID string, data map[string]interface{}) error
}

// credentialVerifier is the default StepVerifier. Each step demands one
// piece of evidence in the supplied data and nothing more, so outcomes are
// deterministic.
type credentialVerifier struct{}

// evidenceKeys maps each step to the data key it requires.
var evidenceKeys = map[string]string{
	StepUserAuth:          "password",
	StepDeviceVerify:      "device_id",
	StepTwoFactor:         "code",
	StepBiometric:         "biometric_hash",
	StepHardwareKey:       "key_serial",
	StepSecurityQuestions: "answers",
	StepSession:           "session_id",
}

func (credentialVerifier) Verify(step, userID string, data map[string]interface{}) error {
	key, ok := evidenceKeys[step]
	if !ok {
		return fmt.Errorf("unknown verification step %q", step)
	}
	v, ok := data[key]
	if !ok {
		return fmt.Errorf("step %s requires %q", step, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return fmt.Errorf("step %s: %q is empty", step, key)
	}
	if step == StepTwoFactor && len(s) != 6 {
		return fmt.Errorf("step %s: code must be 6 digits", step)
	}
	return nil
}
