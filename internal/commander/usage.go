package commander

// Usage is the help text printed for --help and when no command is given.
const Usage = `Commands:
    login        Login and connect with the service.  Only needed once.
    run          Run a pipeline
    lint         Validate syntax of a yaml file
    validate     Validate a pipeline file.  Includes lint and validating referenced tasks and inputs
    logout       Logout
    version      Print the agent version

Options:
    --yaml       Path to a yaml file (alias --yml).  If not supplied, first file ending in .yml is used
    --offline    Do not attempt to resolve task versions.  Always use what is in the local task cache.
    --url        URL of the server or service (login)
    --auth       Authentication scheme, only pat is supported (login)
    --token      Personal access token (login)
    --config     Config file.  Defaults to ~/.vsts-pi/config.yaml
    --trace      Mirror the trace log to stderr
    --no-color   Disable colored output
    --unattended Never prompt for missing values
    --commit     Print the commit the agent was built from

Examples:
    vsts-pi login --url https://<account>.visualstudio.com --auth pat --token <pat>
    vsts-pi validate --yaml vsts-ci.yml
    vsts-pi run --yaml vsts-ci.yml

Environment Variable Override:
    VSTS_URL     URL of the server or service
    VSTS_PAT     PAT token to use
`

func (c *Commander) printUsage() {
	c.term.WriteLine(Usage)
}
