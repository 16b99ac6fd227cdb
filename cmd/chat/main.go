// Command chat is an interactive terminal client for the assistant engine.
// It streams answers token by token, shows retrieval metadata and narrates
// completed answers when voice output is enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	conversation "github.com/functiomed/assistant-core/core"
	"github.com/functiomed/assistant-core/core/audio/miniaudio"
	"github.com/functiomed/assistant-core/core/generation"
	"github.com/functiomed/assistant-core/core/narration/backendapi"
)

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	bodyStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	faintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type partialResponseMsg struct{ text string }

type responseEndMsg struct{ text string }

type metadataMsg struct{ metadata generation.Metadata }

type cancellationMsg struct{ partialText string }

type failureMsg struct{ message string }

type warningMsg struct{ message string }

type speakingMsg struct{ isSpeaking bool }

type pendingNarrationMsg struct{ pending bool }

type model struct {
	engine *conversation.Engine

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	streaming  bool
	partial    string
	confidence float64
	language   string
	speaking   bool
	pending    bool
	notice     string
}

func newModel(engine *conversation.Engine) model {
	input := textinput.New()
	input.Placeholder = "Ask a question..."
	input.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		engine:  engine,
		input:   input,
		spinner: s,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyEsc:
			if m.streaming {
				m.engine.CancelTurn()
				return m, nil
			}
			return m, tea.Quit
		case tea.KeyCtrlS:
			m.engine.StopSpeaking()
			return m, nil
		case tea.KeyCtrlV:
			m.engine.SetVoiceEnabled(!m.engine.IsVoiceEnabled())
			return m, nil
		case tea.KeyCtrlR:
			m.engine.RetryPendingNarration()
			return m, nil
		case tea.KeyEnter:
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			if _, err := m.engine.Send(query); err != nil {
				m.notice = errorStyle.Render(err.Error())
				return m, nil
			}
			m.input.Reset()
			m.streaming = true
			m.partial = ""
			m.notice = ""
			m.refreshTranscript()
			return m, nil
		}

	case partialResponseMsg:
		m.streaming = true
		m.partial = msg.text
		m.refreshTranscript()
		return m, nil

	case responseEndMsg:
		m.streaming = false
		m.partial = ""
		m.refreshTranscript()
		return m, nil

	case metadataMsg:
		m.confidence = msg.metadata.ConfidenceScore
		m.language = msg.metadata.DetectedLanguage
		return m, nil

	case cancellationMsg:
		m.streaming = false
		m.partial = ""
		m.refreshTranscript()
		return m, nil

	case failureMsg:
		m.streaming = false
		m.partial = ""
		m.notice = errorStyle.Render(msg.message)
		m.refreshTranscript()
		return m, nil

	case warningMsg:
		m.notice = warningStyle.Render(msg.message)
		return m, nil

	case speakingMsg:
		m.speaking = msg.isSpeaking
		return m, nil

	case pendingNarrationMsg:
		m.pending = msg.pending
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var inputCmd, viewportCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	m.viewport, viewportCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewportCmd)
}

func (m *model) refreshTranscript() {
	if !m.ready {
		return
	}

	var b strings.Builder
	for _, message := range m.engine.Messages() {
		switch message.Role {
		case conversation.RoleUser:
			b.WriteString(userStyle.Render("You"))
		case conversation.RoleAssistant:
			b.WriteString(assistantStyle.Render("Assistant"))
		}
		b.WriteString("\n")

		text := message.Text
		if message.Streaming && m.partial != "" {
			text = m.partial
		}
		b.WriteString(bodyStyle.Render(wordwrap.String(text, m.viewport.Width)))
		if message.Cancelled {
			b.WriteString(faintStyle.Render(" (cancelled)"))
		}
		b.WriteString("\n\n")
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	status := []string{}
	if m.streaming {
		status = append(status, m.spinner.View()+"answering (esc cancels)")
	}
	if m.speaking {
		status = append(status, "speaking (ctrl+s stops)")
	}
	if m.pending {
		status = append(status, "audio ready, press ctrl+r to play")
	}
	if m.language != "" {
		status = append(status, fmt.Sprintf("%s / confidence %.2f", m.language, m.confidence))
	}
	if !m.engine.IsVoiceEnabled() {
		status = append(status, "voice off (ctrl+v toggles)")
	}
	statusLine := faintStyle.Render(strings.Join(status, "  |  "))
	if m.notice != "" {
		statusLine = m.notice
	}

	return m.viewport.View() + "\n" + statusLine + "\n" + m.input.View()
}

func main() {
	baseURL := flag.String("base-url", "http://localhost:8000", "assistant backend base URL")
	apiKey := flag.String("api-key", os.Getenv("FUNCTIOMED_API_KEY"), "backend API key")
	language := flag.String("language", "DE", "answer and narration language (DE, EN or FR)")
	voice := flag.Bool("voice", true, "narrate completed answers")
	greeting := flag.String("greeting", "", "assistant greeting shown on start")
	flag.Parse()

	generator := generation.NewClient(*baseURL, generation.WithAPIKey(*apiKey))
	synthesizer := backendapi.NewClient(*baseURL, backendapi.WithAPIKey(*apiKey))

	engineOptions := []conversation.EngineOption{
		conversation.WithGenerationClient(generator),
		conversation.WithNarrationClient(synthesizer),
		conversation.WithLanguage(*language),
		conversation.WithVoiceEnabled(*voice),
	}
	if *greeting != "" {
		engineOptions = append(engineOptions, conversation.WithGreeting(*greeting))
	}

	player, err := miniaudio.NewPlayer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "audio output unavailable, continuing without voice: %v\n", err)
	} else {
		defer player.Close()
		engineOptions = append(engineOptions, conversation.WithAudioPlayer(player))
	}

	engine := conversation.NewEngine(engineOptions...)
	defer engine.Close()

	program := tea.NewProgram(newModel(engine), tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine.Open(ctx,
		conversation.WithPartialResponseCallback(func(text string) {
			program.Send(partialResponseMsg{text: text})
		}),
		conversation.WithResponseEndCallback(func(text string) {
			program.Send(responseEndMsg{text: text})
		}),
		conversation.WithMetadataCallback(func(metadata generation.Metadata) {
			program.Send(metadataMsg{metadata: metadata})
		}),
		conversation.WithCancellationCallback(func(partialText string) {
			program.Send(cancellationMsg{partialText: partialText})
		}),
		conversation.WithFailureCallback(func(message string) {
			program.Send(failureMsg{message: message})
		}),
		conversation.WithWarningCallback(func(message string) {
			program.Send(warningMsg{message: message})
		}),
		conversation.WithSpeakingStateChangedCallback(func(isSpeaking bool) {
			program.Send(speakingMsg{isSpeaking: isSpeaking})
		}),
		conversation.WithPendingNarrationCallback(func(pending bool) {
			program.Send(pendingNarrationMsg{pending: pending})
		}),
	)

	if *greeting != "" {
		engine.Greet()
	}

	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
