package system

import "fmt"

var Name = "rbac-evaluator"
var Version = "<unset>"
var Commit = "<unset>"
var Repository = "https://github.com/telekom/rbac-evaluator"

func PrettyInfo() string {
	return fmt.Sprintf(`
===========================================================================
Application: %s
Version %s
GOTO: %s/tree/%s
===========================================================================
`, Name, Version, Repository, Commit)
}
