package types

import "fmt"

// Policy is a named routing strategy run by the backend simulation
type Policy string

const (
	PolicyCUCBOTA     Policy = "CUCB-OTA"
	PolicyFCFS        Policy = "FCFS"
	PolicySkillGreedy Policy = "Skill-Greedy"
)

// AllPolicies lists every policy the backend accepts, in display order
var AllPolicies = []Policy{PolicyCUCBOTA, PolicyFCFS, PolicySkillGreedy}

// ParsePolicy returns the policy with the given name or an error for unknown names
func ParsePolicy(name string) (Policy, error) {
	for _, p := range AllPolicies {
		if string(p) == name {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown policy %q", name)
}
