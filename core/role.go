package core

import "fmt"

// Role classifies what kind of work an agent performs. The set is closed.
type Role string

const (
	RoleResearcher   Role = "researcher"   // Searches and gathers information
	RoleCoder        Role = "coder"        // Writes and modifies code
	RoleReviewer     Role = "reviewer"     // Reviews code and provides feedback
	RolePlanner      Role = "planner"      // Creates implementation plans
	RoleTester       Role = "tester"       // Writes and runs tests
	RoleDeployer     Role = "deployer"     // Handles deployment tasks
	RoleOrchestrator Role = "orchestrator" // Coordinates other agents
)

// Roles returns every role in declaration order.
func Roles() []Role {
	return []Role{
		RoleResearcher,
		RoleCoder,
		RoleReviewer,
		RolePlanner,
		RoleTester,
		RoleDeployer,
		RoleOrchestrator,
	}
}

// ParseRole converts text into a Role, rejecting values outside the closed set.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles() {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown agent role %q", s)
}

// String implements fmt.Stringer.
func (r Role) String() string { return string(r) }
