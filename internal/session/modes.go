package session

import (
	"context"
	"errors"
	"strings"

	"github.com/go-mngr/mngr/internal/plugin"
	"github.com/go-mngr/mngr/internal/release"
)

type State int

const (
	StateTopLevel State = iota
	StateRegister
	StateUnregister
	StateUpdate
	StateUpdateMulti
	StateExit
)

func (s State) String() string {
	switch s {
	case StateTopLevel:
		return "top-level"
	case StateRegister:
		return "register"
	case StateUnregister:
		return "unregister"
	case StateUpdate:
		return "update"
	case StateUpdateMulti:
		return "update/multi"
	case StateExit:
		return "exit"
	default:
		return "unknown"
	}
}

type command struct {
	name        string
	alias       string
	args        string
	description string
	run         func(ctx context.Context, s *Session, arg string) State
}

func (c *command) usage(name string) string {
	if c.args == "" {
		return name
	}
	return name + " " + c.args
}

type mode struct {
	prompt    string
	commands  []*command
	inputHelp string
	// input handles lines that are not a command. If nil, such lines reprint
	// the help of the mode.
	input func(ctx context.Context, s *Session, line string) State
}

func (m *mode) lookup(word string) *command {
	for _, c := range m.commands {
		if strings.EqualFold(word, c.name) || word == c.alias {
			return c
		}
	}
	return nil
}

func helpCommand(state State) *command {
	return &command{
		name:        "help",
		alias:       "H",
		description: "show this page.",
		run: func(_ context.Context, s *Session, _ string) State {
			s.out.Help(s.modes[state])
			return state
		},
	}
}

func exitCommand(description string, next State) *command {
	return &command{
		name:        "exit",
		alias:       "E",
		description: description,
		run: func(context.Context, *Session, string) State {
			return next
		},
	}
}

func goTo(next State) func(context.Context, *Session, string) State {
	return func(_ context.Context, s *Session, _ string) State {
		s.out.Help(s.modes[next])
		return next
	}
}

func runUpdate(policy plugin.Policy) func(context.Context, *Session, string) State {
	return func(ctx context.Context, s *Session, _ string) State {
		s.update(ctx, policy, nil)
		return StateUpdate
	}
}

func newModes() map[State]*mode {
	return map[State]*mode{
		StateTopLevel: {
			prompt: "mngr> ",
			commands: []*command{
				helpCommand(StateTopLevel),
				{
					name:        "register",
					alias:       "R",
					args:        "[repository url]",
					description: "register a plugin repository.",
					run: func(ctx context.Context, s *Session, arg string) State {
						if arg == "" {
							return goTo(StateRegister)(ctx, s, arg)
						}
						s.register(ctx, arg)
						return StateTopLevel
					},
				},
				{
					name:        "unregister",
					alias:       "UR",
					args:        "[plugin name]",
					description: "unregister a plugin, or choose by name or file name without an argument.",
					run: func(ctx context.Context, s *Session, arg string) State {
						if arg == "" {
							return goTo(StateUnregister)(ctx, s, arg)
						}
						s.unregister(ctx, plugin.Selector{Kind: plugin.ByName, Value: arg})
						return StateTopLevel
					},
				},
				{
					name:        "update",
					alias:       "U",
					args:        "[all | name,name,...]",
					description: "update all or the listed plugins, or choose a policy without an argument.",
					run: func(ctx context.Context, s *Session, arg string) State {
						switch {
						case arg == "":
							return goTo(StateUpdate)(ctx, s, arg)
						case strings.EqualFold(arg, "all"):
							s.update(ctx, plugin.PolicyAll, nil)
						default:
							s.update(ctx, plugin.PolicyNamed, plugin.SplitNames(arg))
						}
						return StateTopLevel
					},
				},
				{
					name:        "list",
					alias:       "L",
					description: "list the registered plugins.",
					run: func(_ context.Context, s *Session, _ string) State {
						s.out.Plugins(s.manager.Registry().Records())
						return StateTopLevel
					},
				},
				exitCommand("exit mngr.", StateExit),
			},
		},
		StateRegister: {
			prompt:    "mngr/register> ",
			inputHelp: "Enter the url of a GitHub repository, e.g. https://github.com/<owner>/<repository>.",
			commands: []*command{
				helpCommand(StateRegister),
				exitCommand("go back.", StateTopLevel),
			},
			input: func(ctx context.Context, s *Session, line string) State {
				err := s.register(ctx, line)
				if err == nil {
					return StateTopLevel
				}
				if errors.Is(err, release.ErrInvalidURL) {
					s.out.Help(s.modes[StateRegister])
				}
				return StateRegister
			},
		},
		StateUnregister: {
			prompt: "mngr/unregister> ",
			commands: []*command{
				helpCommand(StateUnregister),
				{
					name:        "name",
					alias:       "N",
					args:        "(plugin name)",
					description: "unregister the plugin with this name and delete its file.",
					run: func(ctx context.Context, s *Session, arg string) State {
						s.unregister(ctx, plugin.Selector{Kind: plugin.ByName, Value: arg})
						return StateUnregister
					},
				},
				{
					name:        "file",
					alias:       "F",
					args:        "(file name)",
					description: "unregister the plugin installed as this file and delete it.",
					run: func(ctx context.Context, s *Session, arg string) State {
						s.unregister(ctx, plugin.Selector{Kind: plugin.ByFileName, Value: arg})
						return StateUnregister
					},
				},
				exitCommand("go back.", StateTopLevel),
			},
		},
		StateUpdate: {
			prompt: "mngr/update> ",
			commands: []*command{
				helpCommand(StateUpdate),
				{
					name:        "all",
					alias:       "A",
					description: "update all plugins to their latest stable release.",
					run:         runUpdate(plugin.PolicyAll),
				},
				{
					name:        "pre",
					alias:       "P",
					description: "update all plugins to their latest release, including pre-releases.",
					run:         runUpdate(plugin.PolicyAllWithPreRelease),
				},
				{
					name:        "stable",
					alias:       "S",
					description: "update only plugins that are not on a pre-release.",
					run:         runUpdate(plugin.PolicyStable),
				},
				{
					name:        "multi",
					alias:       "M",
					args:        "[name,name,...]",
					description: "update the listed plugins.",
					run: func(ctx context.Context, s *Session, arg string) State {
						if arg == "" {
							return goTo(StateUpdateMulti)(ctx, s, arg)
						}
						s.update(ctx, plugin.PolicyNamed, plugin.SplitNames(arg))
						return StateUpdate
					},
				},
				exitCommand("go back.", StateTopLevel),
			},
		},
		StateUpdateMulti: {
			prompt:    "mngr/update/multi> ",
			inputHelp: "Enter a comma separated list of plugin names, e.g. widget,gadget.",
			commands: []*command{
				helpCommand(StateUpdateMulti),
				exitCommand("go back without updating.", StateUpdate),
			},
			input: func(ctx context.Context, s *Session, line string) State {
				s.update(ctx, plugin.PolicyNamed, plugin.SplitNames(line))
				return StateUpdate
			},
		},
	}
}
