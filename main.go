package main

import (
	"github.com/therudywolf/DomainsBot-sub000/cmd"
)

// execCmd is indirected so tests can stub out command execution.
var execCmd = cmd.Execute

func main() {
	execCmd()
}
