// Package cli is the vsts-pi command line.
//
// Every form of a command ends up as one settings.CommandSettings value
// handed to the commander:
//
//	vsts-pi run --yaml ci.yml      verb as a subcommand
//	vsts-pi --run --yml ci.yml     verb as a flag
//	vsts-pi help run               cobra's help command
//
// The commander picks the highest-priority action, so help always wins.
// Cobra never prints errors or usage itself; unknown commands print one
// error line and then the usage text, and exit codes travel back as
// errors.ExitError.
package cli
