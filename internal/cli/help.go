package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(brandColor).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(closedColor).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(closedColor).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(openColor).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(dialColor).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(dimColor).
				Italic(true)
)

// StyledHelpPrinter creates a custom help printer with Lipgloss styling
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		node := helpNode(ctx)

		// Title and description
		sb.WriteString(helpTitleStyle.Render("Squelch 📻"))
		sb.WriteString("\n")
		desc := node.Help
		if desc == "" {
			desc = "Silence filter and scheduler for radio captures"
		}
		sb.WriteString(helpDescStyle.Render(desc))
		sb.WriteString("\n")

		// Usage
		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(usageLine(node))
		sb.WriteString("\n")

		// Commands section
		commands := getCommands(node)
		if len(commands) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Commands:"))
			sb.WriteString("\n")
			for _, cmd := range commands {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(cmd.name))
				if cmd.help != "" {
					sb.WriteString("  ")
					sb.WriteString(cmd.help)
				}
				sb.WriteString("\n")
			}
		}

		// Arguments section
		args := getArguments(node)
		if len(args) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Arguments:"))
			sb.WriteString("\n")
			for _, arg := range args {
				sb.WriteString("  ")
				sb.WriteString(helpArgStyle.Render(arg.name))
				if arg.help != "" {
					sb.WriteString("  ")
					sb.WriteString(arg.help)
				}
				sb.WriteString("\n")
			}
		}

		// Flags section
		flags := getFlags(node)
		if len(flags) > 0 {
			sb.WriteString("\n")
			sb.WriteString(helpSectionStyle.Render("Flags:"))
			sb.WriteString("\n")
			for _, flag := range flags {
				sb.WriteString("  ")
				sb.WriteString(helpFlagStyle.Render(flag.flags))
				if flag.help != "" {
					sb.WriteString("  ")
					sb.WriteString(flag.help)
				}
				if flag.defaultVal != "" {
					sb.WriteString(" ")
					sb.WriteString(helpDefaultStyle.Render("(default: " + flag.defaultVal + ")"))
				}
				sb.WriteString("\n")
			}
		}

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

type argument struct {
	name string
	help string
}

type flag struct {
	flags      string
	help       string
	defaultVal string
}

// helpNode is the selected command, or the application root
func helpNode(ctx *kong.Context) *kong.Node {
	if node := ctx.Selected(); node != nil {
		return node
	}
	return ctx.Model.Node
}

func usageLine(node *kong.Node) string {
	line := node.FullPath() + " [flags]"
	if len(node.Children) > 0 {
		line += " <command>"
	}
	for _, arg := range node.Positional {
		line += " " + arg.Summary()
	}
	return line
}

func getCommands(node *kong.Node) []argument {
	var cmds []argument
	for _, child := range node.Children {
		if child.Hidden {
			continue
		}
		cmds = append(cmds, argument{name: child.Name, help: child.Help})
	}
	return cmds
}

func getArguments(node *kong.Node) []argument {
	var args []argument

	for _, arg := range node.Positional {
		name := arg.Summary()
		help := arg.Help
		args = append(args, argument{name: name, help: help})
	}

	return args
}

func getFlags(node *kong.Node) []flag {
	var flags []flag

	// Always include help flag
	flags = append(flags, flag{
		flags: "-h, --help",
		help:  "Show context-sensitive help.",
	})

	// Flags of the command and its parents, hidden flags excluded
	for _, group := range node.AllFlags(true) {
		for _, f := range group {
			if f.Name == "help" {
				continue // Already added
			}
			flags = append(flags, describeFlag(f))
		}
	}

	return flags
}

func describeFlag(f *kong.Flag) flag {

	flagStr := ""
	if f.Short != 0 {
		flagStr = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
	} else {
		flagStr = fmt.Sprintf("--%s", f.Name)
	}

	if !f.IsBool() && f.PlaceHolder != "" {
		flagStr += "=" + strings.ToUpper(f.PlaceHolder)
	}

	return flag{
		flags:      flagStr,
		help:       f.Help,
		defaultVal: f.Default,
	}
}
