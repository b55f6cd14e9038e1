// Package session implements the interactive command loop of mngr.
//
// The loop is a state machine: every State owns a mode with its prompt and
// commands, and every handled line yields the next State. Sub-modes are
// entered from the top level and return to it; update/multi returns to update.
package session

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/go-mngr/mngr/internal/artifact"
	"github.com/go-mngr/mngr/internal/plugin"
	"github.com/go-mngr/mngr/pkg/registry"
	"github.com/sirupsen/logrus"
)

type Saver interface {
	Save(reg *registry.Registry) error
}

type Session struct {
	log     *logrus.Logger
	manager *plugin.Manager
	store   Saver
	scanner *bufio.Scanner
	out     *printer
	modes   map[State]*mode
	state   State
}

func New(log *logrus.Logger, manager *plugin.Manager, store Saver, in io.Reader, out io.Writer) *Session {
	return &Session{
		log:     log,
		manager: manager,
		store:   store,
		scanner: bufio.NewScanner(in),
		out:     newPrinter(out),
		modes:   newModes(),
		state:   StateTopLevel,
	}
}

func (s *Session) State() State {
	return s.state
}

// Run reads commands until exit is entered or the input ends.
func (s *Session) Run(ctx context.Context) error {
	s.out.Printf("Type '%s' or '%s' to show the available commands.\n", "help", "H")
	for s.state != StateExit {
		if err := ctx.Err(); err != nil {
			return err
		}
		m := s.modes[s.state]
		s.out.Printf("%s", m.prompt)
		line, ok := s.readLine()
		if !ok {
			s.out.Println()
			s.state = StateExit
			break
		}
		if line == "" {
			continue
		}
		next := s.dispatch(ctx, m, line)
		if next != s.state {
			s.log.Debugf("session: %s -> %s", s.state, next)
		}
		s.state = next
	}
	return s.scanner.Err()
}

func (s *Session) dispatch(ctx context.Context, m *mode, line string) State {
	word, arg, _ := strings.Cut(line, " ")
	if c := m.lookup(word); c != nil {
		return c.run(ctx, s, strings.TrimSpace(arg))
	}
	if m.input != nil {
		return m.input(ctx, s, line)
	}
	s.out.Help(m)
	return s.state
}

func (s *Session) readLine() (string, bool) {
	if !s.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.scanner.Text()), true
}

// confirmOverwrite asks on the session input whether an existing plugin file
// may be replaced. Anything but y or yes declines.
func (s *Session) confirmOverwrite(fileName string) (bool, error) {
	s.out.Noticef("The file %s already exists in the plugins directory.", fileName)
	s.out.Printf("overwrite? [y/N] ")
	answer, ok := s.readLine()
	if !ok {
		return false, nil
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (s *Session) save() {
	if err := s.store.Save(s.manager.Registry()); err != nil {
		s.log.Errorf("failed to save registry: %v", err)
		s.out.Error(err)
	}
}

func (s *Session) register(ctx context.Context, url string) error {
	res, err := s.manager.Register(ctx, url)
	if res != nil && res.Quota.Known {
		defer s.out.Quota(res.Quota)
	}
	if err != nil {
		s.out.Error(err)
		return err
	}
	s.save()
	s.out.Successf("Registered %s %s (%s).", res.Record.Name, res.Record.Version, res.Record.FileName)
	if res.Record.PreRelease {
		s.out.Noticef("%s is a pre-release.", res.Record.Version)
	}
	return nil
}

func (s *Session) unregister(ctx context.Context, sel plugin.Selector) {
	if sel.Value == "" {
		s.out.Failuref("Missing argument, see 'help'.")
		return
	}
	res, err := s.manager.Unregister(ctx, sel)
	if err != nil {
		s.out.Error(err)
		return
	}
	s.save()
	s.out.Successf("Unregistered %s.", res.Record.Name)
	if res.FileErr != nil {
		if errors.Is(res.FileErr, artifact.ErrArtifactNotFound) {
			s.out.Noticef("The file %s was not found in the plugins directory.", res.Record.FileName)
			return
		}
		s.out.Error(res.FileErr)
	}
}

func (s *Session) update(ctx context.Context, policy plugin.Policy, names []string) {
	report := s.manager.UpdatePolicy(ctx, policy, names, s.confirmOverwrite)
	if report.Changed() {
		s.save()
	}
	s.out.Report(report)
	if err := report.Err(); err != nil {
		s.log.Warnf("update finished with errors: %v", err)
	}
}
