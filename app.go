package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"obdreader/can"
	"obdreader/config"
	"obdreader/logging"
	"obdreader/obd"
	"obdreader/publish"
	"obdreader/report"
	"obdreader/ui/footer"
	"obdreader/ui/header"
	"obdreader/ui/msgbar"
	"obdreader/ui/sidebar"
)

const (
	sidebarWidth = 44
	traceBuffer  = 256
)

// reportMsg is the outcome of a query started from the console.
type reportMsg report.Report

// linkErrMsg reports that the link stopped delivering frames.
type linkErrMsg struct {
	err error
}

// model holds the console's state
type model struct {
	width  int
	height int

	headerModel  header.Model
	sidebarModel sidebar.Model
	msgbarModel  msgbar.Model
	footerModel  footer.Model

	ctx     context.Context
	session *obd.Session
	pub     publish.Publisher
	logger  zerolog.Logger
	traces  <-chan msgbar.TraceMsg

	busy bool
	err  error
}

func newModel(ctx context.Context, link string, session *obd.Session, pub publish.Publisher, traces <-chan msgbar.TraceMsg, logger zerolog.Logger) model {
	return model{
		width:        80,
		height:       24,
		headerModel:  header.New(link),
		sidebarModel: sidebar.New(),
		msgbarModel:  msgbar.New(),
		footerModel:  footer.New(),
		ctx:          ctx,
		session:      session,
		pub:          pub,
		logger:       logger,
		traces:       traces,
	}
}

// listenForTraces waits for the next traced frame
func (m model) listenForTraces() tea.Cmd {
	return func() tea.Msg {
		t, ok := <-m.traces
		if !ok {
			return nil
		}
		return t
	}
}

// query runs t off the UI goroutine and publishes the result.
func (m model) query(t report.Type) tea.Cmd {
	session, pub, logger, ctx := m.session, m.pub, m.logger, m.ctx
	return func() tea.Msg {
		r := session.Query(ctx, t)
		if err := pub.Publish(r); err != nil {
			logger.Warn().Err(err).Msg("publish failed")
		}
		return reportMsg(r)
	}
}

func (m model) Init() tea.Cmd {
	return m.listenForTraces()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
		return m, nil
	}

	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case msgbar.TraceMsg:
		var cmd tea.Cmd
		m.msgbarModel, cmd = m.msgbarModel.Update(msg)
		cmds = append(cmds, cmd, m.listenForTraces())

	case reportMsg:
		r := report.Report(msg)
		m.busy = false
		m.footerModel.SetStatus("idle")
		m.sidebarModel.AddReport(r)
		if r.Err != nil {
			m.msgbarModel, _ = m.msgbarModel.Update(msgbar.ErrorMsg{Err: r.Err})
		}

	case linkErrMsg:
		m.err = msg.err
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 1
		footerHeight := 1
		mainHeight := m.height - headerHeight - msgbar.Height() - footerHeight
		if mainHeight < 3 {
			mainHeight = 3
		}

		m.headerModel, _ = m.headerModel.Update(tea.WindowSizeMsg{Width: m.width, Height: headerHeight})
		m.sidebarModel, _ = m.sidebarModel.Update(tea.WindowSizeMsg{Width: min(sidebarWidth, m.width), Height: mainHeight})
		m.msgbarModel, _ = m.msgbarModel.Update(tea.WindowSizeMsg{Width: m.width, Height: msgbar.Height()})
		m.footerModel, _ = m.footerModel.Update(tea.WindowSizeMsg{Width: m.width, Height: footerHeight})

	case tea.KeyMsg:
		var t report.Type
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			t = report.TypeVIN
		case "c":
			t = report.TypeCodes
		case "x":
			t = report.TypeCleared
		default:
			return m, nil
		}
		if m.busy {
			return m, nil
		}
		m.busy = true
		m.footerModel.SetStatus(fmt.Sprintf("reading %s...", t))
		return m, m.query(t)
	}

	return m, tea.Batch(cmds...)
}

func (m model) View() string {
	if m.err != nil {
		errorStyle := lipgloss.NewStyle().
			Width(m.width-2).
			Height(m.height-2).
			Border(lipgloss.DoubleBorder(), true).
			BorderForeground(lipgloss.Color("9")).
			Padding(1).
			Align(lipgloss.Center, lipgloss.Center)
		return errorStyle.Render(
			"Link error:\n\n" + m.err.Error() +
				"\n\nPress any key to quit.",
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerModel.View(),
		m.sidebarModel.View(),
		m.msgbarModel.View(),
		m.footerModel.View(),
	)
}

// runConsole runs the interactive console until the user quits.
func runConsole(cmd *cobra.Command, conf config.Config) error {
	out, closeLog, err := consoleLog(conf.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	logger := logging.Configure(conf.Log, out)

	bus, err := openBus(conf.Interface, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	pub := openPublisher(conf.Publish, logger)
	defer pub.Close()

	frames := make(chan can.Frame, frameBuffer)
	traces := make(chan msgbar.TraceMsg, traceBuffer)
	session := newSession(conf.OBD, bus, frames, logger, obd.WithTrace(func(dir obd.Direction, f can.Frame) {
		select {
		case traces <- msgbar.TraceMsg{Dir: dir, Frame: f}:
		default: // console is behind, drop
		}
	}))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	p := tea.NewProgram(newModel(gctx, linkName(conf.Interface), session, pub, traces, logger), tea.WithAltScreen())

	g.Go(func() error {
		err := bus.Run(gctx, frames)
		if err != nil {
			p.Send(linkErrMsg{err: err})
		}
		return err
	})
	g.Go(func() error {
		defer cancel()
		_, err := p.Run()
		return err
	})
	return g.Wait()
}

func linkName(conf config.InterfaceConfig) string {
	if conf.Type == config.InterfaceSim {
		return "simulated ECU"
	}
	return fmt.Sprintf("%s @ %d kbit/s", conf.Device, conf.Bitrate/1000)
}
