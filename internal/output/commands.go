// Package output processes step output line by line. It highlights error
// lines, masks secrets, and picks out ##vso[...] logging commands so steps
// can talk back to the runner.
package output

import (
	"strings"
)

// commandPrefix starts every logging command line.
const commandPrefix = "##vso["

// Command is one parsed logging command, e.g.
//
//	##vso[task.setvariable variable=version;issecret=false]1.2.3
type Command struct {
	Area       string
	Event      string
	Properties map[string]string
	Data       string
}

// Name returns "area.event".
func (c Command) Name() string {
	return c.Area + "." + c.Event
}

// Property returns a property value, matching the key case-insensitively.
func (c Command) Property(key string) string {
	for k, v := range c.Properties {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

var unescaper = strings.NewReplacer(
	"%3B", ";", "%3b", ";",
	"%0D", "\r", "%0d", "\r",
	"%0A", "\n", "%0a", "\n",
	"%5D", "]", "%5d", "]",
	"%25", "%",
)

// ParseCommand parses a logging command anywhere in line. It reports false
// for ordinary output and for malformed commands.
func ParseCommand(line string) (Command, bool) {
	start := strings.Index(line, commandPrefix)
	if start < 0 {
		return Command{}, false
	}
	rest := line[start+len(commandPrefix):]
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return Command{}, false
	}
	head, data := rest[:end], strings.TrimRight(rest[end+1:], "\r")

	name, props, _ := strings.Cut(head, " ")
	area, event, ok := strings.Cut(name, ".")
	if !ok || area == "" || event == "" {
		return Command{}, false
	}

	cmd := Command{
		Area:       strings.ToLower(area),
		Event:      strings.ToLower(event),
		Properties: make(map[string]string),
		Data:       unescaper.Replace(data),
	}
	for _, prop := range strings.Split(props, ";") {
		key, value, ok := strings.Cut(strings.TrimSpace(prop), "=")
		if !ok || key == "" {
			continue
		}
		cmd.Properties[key] = unescaper.Replace(value)
	}
	return cmd, true
}
