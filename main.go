package main

import "github.com/telekom/rbac-evaluator/cmd"

func main() {
	cmd.Execute()
}
