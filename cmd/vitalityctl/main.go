// vitalityctl talks to the Fitness Planner API from the command line and
// manages the CLI settings in ~/.vitality/config.yaml.
//
// Usage:
//
//	vitalityctl health                       Show the planner health document
//	vitalityctl assign <file.csv>            Assign programs to a member CSV
//	vitalityctl process [-plans] <file.csv>  Assign (and plan) in one call
//	vitalityctl generate <members.json>      Generate plans for assigned members
//	vitalityctl export <members.json> <out>  Write members to .csv or .xlsx
//	vitalityctl config show                  Print the effective settings
//	vitalityctl config set-api-base <url>    Persist an API base override
//	vitalityctl config clear-api-base        Remove the override
//	vitalityctl hash-password                Read a password on stdin, print its bcrypt hash
package main

import (
	"fmt"
	"os"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "help", "--help", "-h":
		printUsage()
		return
	case "version", "--version":
		fmt.Printf("vitalityctl version %s\n", version)
		return
	case "health":
		err = cmdHealth(args)
	case "assign":
		err = cmdAssign(args)
	case "process":
		err = cmdProcess(args)
	case "generate":
		err = cmdGenerate(args)
	case "export":
		err = cmdExport(args)
	case "config":
		err = cmdConfig(args)
	case "hash-password":
		err = cmdHashPassword(os.Stdin)
	default:
		fmt.Fprintf(os.Stderr, "vitalityctl: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "vitalityctl: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: vitalityctl <command> [args]

Commands:
  health                       Show the planner health document
  assign <file.csv>            Assign programs to a member CSV
  process [-plans] <file.csv>  Assign (and plan) in one call
  generate <members.json>      Generate plans for assigned members
  export <members.json> <out>  Write members to .csv or .xlsx
  config show                  Print the effective settings
  config set-api-base <url>    Persist an API base override
  config clear-api-base        Remove the override
  hash-password                Read a password on stdin, print its bcrypt hash

Planner commands accept -api-base and -timeout.
`)
}
