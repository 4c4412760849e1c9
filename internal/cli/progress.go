package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/sandia-project/sandia-go/internal/analysis"
	"github.com/sandia-project/sandia-go/internal/consensus"
	"github.com/sandia-project/sandia-go/internal/engine"
)

const progressTickInterval = 500 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// tickMsg triggers refreshing the engine job states.
type tickMsg time.Time

// analysisDoneMsg carries the consensus once the orchestrator returns.
type analysisDoneMsg struct {
	result *consensus.Result
	err    error
}

// analysisModel is the bubbletea model for a running analysis.
type analysisModel struct {
	orch       *analysis.Orchestrator
	artifactID string
	resultCh   <-chan analysisDoneMsg
	cancel     context.CancelFunc
	states     map[engine.Kind]analysis.JobState
	progress   progress.Model
	theme      Theme
	result     *consensus.Result
	done       bool
	quitting   bool
	err        error
}

func newAnalysisModel(orch *analysis.Orchestrator, artifactID string, resultCh <-chan analysisDoneMsg, cancel context.CancelFunc) analysisModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return analysisModel{
		orch:       orch,
		artifactID: artifactID,
		resultCh:   resultCh,
		cancel:     cancel,
		progress:   prog,
		theme:      defaultTheme,
	}
}

// Init starts the refresh loop alongside the completion watcher.
func (m analysisModel) Init() tea.Cmd {
	return tea.Batch(
		progressTickCmd(),
		m.waitForResult(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m analysisModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tickMsg:
		m.states = m.orch.GetJobStates(m.artifactID)
		if m.done {
			return m, nil
		}
		return m, progressTickCmd()

	case analysisDoneMsg:
		m.states = m.orch.GetJobStates(m.artifactID)
		m.result = msg.result
		m.err = msg.err
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m analysisModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m analysisModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	if len(m.states) == 0 {
		return "Dispatching engines...\n"
	}

	terminal := 0
	for _, state := range m.states {
		if state.Terminal() {
			terminal++
		}
	}
	pct := float64(terminal) / float64(len(m.states))

	status := m.theme.statusStyle().Render("[analyzing]")
	bar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d engines", terminal, len(m.states))
	hint := m.theme.hintStyle().Render("Press Ctrl+C to abort")

	out := fmt.Sprintf("%s %s %s\n", status, bar, counts)
	for _, line := range m.engineLines() {
		out += line + "\n"
	}
	return out + hint + "\n"
}

// engineLines renders one state line per engine in a stable order.
func (m analysisModel) engineLines() []string {
	kinds := make([]engine.Kind, 0, len(m.states))
	for kind := range m.states {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	lines := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		state := m.states[kind]
		label := fmt.Sprintf("  %-11s %s", kind, state)
		switch state {
		case analysis.StateCompleted:
			label = m.theme.completedStyle().Render(label)
		case analysis.StateFailed, analysis.StateTimedOut:
			label = m.theme.errorStyle().Render(label)
		}
		lines = append(lines, label)
	}
	return lines
}

// finalView renders the completion message.
func (m analysisModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nAnalysis aborted.\n")
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Analysis failed: %s\n", m.err))
	}

	return m.theme.completedStyle().Render("✓ Analysis complete") + "\n"
}

// waitForResult blocks on the orchestrator goroutine finishing.
func (m analysisModel) waitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-m.resultCh
	}
}

func progressTickCmd() tea.Cmd {
	return tea.Tick(progressTickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// runAnalysisWithProgress runs the orchestrator while showing an
// interactive per-engine progress display.
func runAnalysisWithProgress(ctx context.Context, orch *analysis.Orchestrator, artifact engine.ArtifactRef, opts analysis.Options) (*consensus.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	resultCh := make(chan analysisDoneMsg, 1)
	go func() {
		result, err := orch.Analyze(ctx, artifact, opts)
		resultCh <- analysisDoneMsg{result: result, err: err}
	}()

	model := newAnalysisModel(orch, artifact.ID, resultCh, cancel)
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	if m, ok := finalModel.(analysisModel); ok {
		if m.quitting {
			return nil, context.Canceled
		}
		return m.result, m.err
	}
	return nil, fmt.Errorf("unexpected progress model state")
}
