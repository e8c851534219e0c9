package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/csheth/papergraph/internal/chat"
	"github.com/csheth/papergraph/internal/citations"
	"github.com/csheth/papergraph/internal/graph"
)

func (m *model) View() string {
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.sidebarView(), m.mainView())
	return lipgloss.JoinVertical(lipgloss.Left, m.headerView(), body, m.statusView(), m.helpView())
}

func (m *model) headerView() string {
	line := appTitleStyle.Render("papergraph") + "  " + taglineStyle.Render(heroTagline)
	return lipgloss.NewStyle().MaxWidth(m.layout.windowWidth).Render(line)
}

func (m *model) paneTitle(p pane, text string) string {
	if m.focus == p {
		return focusedTitleStyle.Render(text)
	}
	return paneTitleStyle.Render(text)
}

func (m *model) sidebarView() string {
	width := m.layout.sidebarWidth - 1
	rows := max(m.layout.bodyHeight-2, 1)
	papers := m.snap.Papers

	if m.sidebarCursor < m.sidebarOffset {
		m.sidebarOffset = m.sidebarCursor
	}
	if m.sidebarCursor >= m.sidebarOffset+rows {
		m.sidebarOffset = m.sidebarCursor - rows + 1
	}

	lines := []string{m.paneTitle(paneSidebar, fmt.Sprintf("Papers (%d)", len(papers))), ""}
	if len(papers) == 0 {
		lines = append(lines, helperStyle.Render("No papers yet."))
	}
	for i := m.sidebarOffset; i < len(papers) && i < m.sidebarOffset+rows; i++ {
		p := papers[i]
		marker := "  "
		if m.focus == paneSidebar && i == m.sidebarCursor {
			marker = "▸ "
		}
		suffix := ""
		style := lipgloss.NewStyle()
		switch {
		case p.ID == m.snap.Deleting:
			suffix = " (deleting…)"
			style = deletingItemStyle
		case p.ID == m.snap.Active:
			style = activeItemStyle
		}
		label := trimmedTitle(paperTitle(p), width-lipgloss.Width(marker)-lipgloss.Width(suffix)-1)
		lines = append(lines, marker+style.Render(label)+helperStyle.Render(suffix))
	}

	return sidebarStyle.
		Width(width).
		Height(m.layout.bodyHeight).
		MaxHeight(m.layout.bodyHeight).
		Render(strings.Join(lines, "\n"))
}

func (m *model) mainView() string {
	width := m.layout.mainWidth
	clip := lipgloss.NewStyle().MaxWidth(width)
	return lipgloss.JoinVertical(lipgloss.Left,
		clip.Render(m.graphTitleView()),
		m.graphView(),
		clip.Render(m.graphFooterView()),
		clip.Render(m.tabBarView()),
		m.tabContentView(),
	)
}

func (m *model) graphTitleView() string {
	counts := m.snap.Counts
	title := fmt.Sprintf("Graph · %d papers · %d connections · zoom %.2fx", counts.Nodes, counts.Edges, m.canvas.Zoom())
	return m.paneTitle(paneGraph, title)
}

func (m *model) graphView() string {
	if m.snap.Counts.Nodes == 0 {
		hint := "No papers yet. Ask the assistant to add one."
		if !m.loaded {
			hint = "Loading graph…"
		}
		return lipgloss.Place(m.layout.mainWidth, m.layout.graphRows, lipgloss.Center, lipgloss.Center, helperStyle.Render(hint))
	}
	return m.canvas.Render()
}

func (m *model) graphFooterView() string {
	if edge := m.snap.SelectedEdge; edge != nil {
		kind := "Citation"
		color := graph.CitationColor
		if edge.Kind.Style() != graph.KindCitation {
			kind = strings.ToUpper(string(edge.Kind[:1])) + string(edge.Kind[1:])
			color = graph.SemanticColor
		}
		parts := []string{
			lipgloss.NewStyle().Bold(true).Foreground(color).Render(kind),
			m.edgeLabel(*edge),
		}
		if evidence := strings.TrimSpace(edge.Evidence); evidence != "" {
			parts = append(parts, helperStyle.Render(previewText(evidence, 60)))
		}
		parts = append(parts, helperStyle.Render("d delete · esc close"))
		return strings.Join(parts, "  ")
	}
	legend := lipgloss.NewStyle().Foreground(graph.CitationColor).Render("── citation") + "  " +
		lipgloss.NewStyle().Foreground(graph.SemanticColor).Render("── semantic")
	if node, ok := findNode(m.snap.Nodes, m.focusedNode); ok {
		legend += "  " + helperStyle.Render("▸ "+node.Title)
	}
	return legend
}

func (m *model) tabBarView() string {
	parts := make([]string, 0, len(m.snap.Tabs))
	for _, t := range m.snap.Tabs {
		label := t.Title
		if t.Closable() {
			label += " ×"
		}
		if t.ID == m.snap.Active {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	bar := strings.Join(parts, " ")
	if m.focus == paneTab {
		bar = focusedTitleStyle.Render("▍") + bar
	}
	return bar
}

func (m *model) tabContentView() string {
	box := lipgloss.NewStyle().Height(m.layout.tabRows).MaxHeight(m.layout.tabRows).MaxWidth(m.layout.mainWidth)
	if m.onChatTab() {
		return box.Render(m.chatPaneView())
	}
	return box.Render(m.paperPaneView())
}

func (m *model) chatPaneView() string {
	m.refreshChatView()
	return lipgloss.JoinVertical(lipgloss.Left,
		m.chatView.View(),
		m.composer.View(),
		helperStyle.Render(m.composerHint()),
	)
}

func (m *model) composerHint() string {
	engine := m.ws.Chat()
	switch {
	case engine.Clearing():
		return m.spinner.View() + " Clearing…"
	case engine.Busy():
		return m.spinner.View() + " Thinking…"
	case m.composer.Focused():
		return "enter send · esc stop writing"
	case engine.Empty():
		return "i write · c pick a field · 1-3 starter prompt"
	default:
		return "i write · C clear conversation"
	}
}

func (m *model) refreshChatView() {
	engine := m.ws.Chat()
	messages := engine.Messages()
	wrap := m.wrapWidth(4)
	cb := &contentBuilder{}

	switch {
	case !m.loaded && len(messages) == 0:
		cb.WriteString(helperStyle.Render("Loading conversation…"))
	case engine.Empty():
		m.writeStarter(cb, wrap)
	default:
		active := latestCandidateIndex(messages)
		for i, msg := range messages {
			cb.Blank()
			if msg.Role == chat.RoleUser {
				cb.WriteString(userLabelStyle.Render("You") + "\n")
				cb.WriteString(indentMultiline(wordwrap.String(msg.Content, wrap), "  ") + "\n")
				continue
			}
			cb.WriteString(assistantLabel.Render("Assistant") + "\n")
			cb.WriteString(m.renderMarkdown(msg.Content, wrap) + "\n")
			for j, c := range msg.Candidates {
				prefix := "  • "
				if i == active && j < 9 {
					prefix = fmt.Sprintf("  %d. ", j+1)
				}
				cb.WriteString(candidateStyle.Render(prefix+candidateLabel(c)) + "\n")
			}
		}
		if engine.Busy() {
			cb.Blank()
			cb.WriteString(m.spinner.View() + " " + helperStyle.Render("Thinking…"))
		}
	}
	m.chatView.SetContent(cb.String())
}

func (m *model) writeStarter(cb *contentBuilder, wrap int) {
	cb.WriteString(sectionHeaderStyle.Render("Start exploring") + "\n")
	cb.WriteString(helperStyle.Render(wordwrap.String("Ask the assistant to find a paper, or press c to browse prompts by field.", wrap)) + "\n\n")
	chips := make([]string, 0, len(categories))
	for i, c := range categories {
		if i == m.category {
			chips = append(chips, activeChipStyle.Render(c.Label))
		} else {
			chips = append(chips, chipStyle.Render(c.Label))
		}
	}
	cb.WriteString(wordwrap.String(strings.Join(chips, " "), wrap) + "\n")
	if m.category < 0 {
		return
	}
	cb.WriteRune('\n')
	for i, prompt := range promptsFor(categories[m.category].ID) {
		line := fmt.Sprintf("%d. %s", i+1, prompt)
		cb.WriteString(indentMultiline(wordwrap.String(line, wrap), "  ") + "\n")
	}
}

// renderMarkdown renders assistant replies, memoised per width.
func (m *model) renderMarkdown(text string, width int) string {
	if m.markdown == nil || m.markdownWidth != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			m.logger.Warn("markdown renderer unavailable", "err", err)
			return indentMultiline(wordwrap.String(text, width), "  ")
		}
		m.markdown = renderer
		m.markdownWidth = width
		m.markdownCache = map[string]string{}
	}
	if out, ok := m.markdownCache[text]; ok {
		return out
	}
	out, err := m.markdown.Render(text)
	if err != nil {
		return indentMultiline(wordwrap.String(text, width), "  ")
	}
	out = strings.Trim(out, "\n")
	m.markdownCache[text] = out
	return out
}

func (m *model) paperPaneView() string {
	m.refreshPaperView()
	return m.tabView.View()
}

func (m *model) refreshPaperView() {
	paperID := m.snap.Active
	paper, ok := m.ws.Papers().Get(paperID)
	if !ok {
		m.tabView.SetContent(helperStyle.Render("This paper is no longer in the workspace."))
		return
	}
	pv := m.paperState(paperID)
	wrap := m.wrapWidth(4)
	cb := &contentBuilder{}

	cb.WriteString(paperTitleStyle.Render(wordwrap.String(paperTitle(paper), wrap)) + "\n")
	if published, ok := paper.PublishedAt(); ok {
		cb.WriteString(helperStyle.Render("Published "+published.Format("January 2, 2006")) + "\n")
	}
	if len(paper.Authors) > 0 {
		cb.WriteString(wordwrap.String("Authors: "+shortenList(paper.Authors, 6), wrap) + "\n")
	}
	if link := paper.ArxivURL(); link != "" {
		cb.WriteString(helperStyle.Render("arXiv: "+link) + "\n")
	}

	cb.Blank()
	cb.WriteString(sectionHeaderStyle.Render("Abstract") + "\n")
	summary := strings.TrimSpace(paper.Summary)
	if summary == "" {
		summary = "No abstract available."
	}
	cb.WriteString(indentMultiline(wordwrap.String(summary, wrap), "  ") + "\n")

	if len(paper.KeyConcepts) > 0 {
		cb.Blank()
		cb.WriteString(sectionHeaderStyle.Render("Key concepts") + "\n")
		cb.WriteString(indentMultiline(wordwrap.String(strings.Join(paper.KeyConcepts, " · "), wrap), "  ") + "\n")
	}

	cursorLine := m.writeReferences(cb, paperID, pv, wrap)
	m.writeFullText(cb, pv, wrap)

	m.tabView.SetContent(cb.String())
	if pv.follow && cursorLine >= 0 {
		pv.follow = false
		if cursorLine < m.tabView.YOffset {
			m.tabView.SetYOffset(cursorLine)
		} else if cursorLine >= m.tabView.YOffset+m.tabView.Height {
			m.tabView.SetYOffset(cursorLine - m.tabView.Height + 1)
		}
	}
}

// writeReferences renders the active reference list and returns the line of the cursor row.
func (m *model) writeReferences(cb *contentBuilder, paperID string, pv *paperView, wrap int) int {
	resolver, err := m.ws.Resolver(paperID)
	if err != nil {
		return -1
	}
	list := resolver.List(pv.view)
	other := "arXiv references"
	if pv.view == citations.ViewArxiv {
		other = "citations"
	}

	cb.Blank()
	cb.WriteString(sectionHeaderStyle.Render(fmt.Sprintf("%s (%d)", list.Heading, len(list.References))))
	cb.WriteString("  " + helperStyle.Render("r "+other) + "\n")
	if len(list.References) == 0 {
		cb.WriteString(helperStyle.Render("  Nothing listed.") + "\n")
		return -1
	}

	pending, hasPending := resolver.Pending()
	cursorLine := -1
	for i, ref := range list.References {
		label := ref.Title
		if label == "" {
			label = "arXiv:" + ref.ArxivID
		}
		if ref.Author != "" {
			label += " · " + ref.Author
		}
		if ref.ArxivID != "" && ref.Title != "" {
			label += " · arXiv:" + ref.ArxivID
		}
		status := ""
		state := resolver.State(ref.Key)
		switch {
		case state.Resolving:
			status = " " + m.spinner.View() + " resolving…"
		case state.Resolved:
			status = " " + addedStyle.Render("✓ added")
		}
		line := trimmedTitle(label, max(wrap-lipgloss.Width(status)-2, 8))
		if m.focus == paneTab && i == pv.cursor {
			cursorLine = cb.Line()
			line = cursorStyle.Render(line)
		}
		cb.WriteString("  " + line + status + "\n")

		if hasPending && pending.Key == ref.Key {
			for j, c := range pending.Candidates {
				prefix := "      • "
				if j < 9 {
					prefix = fmt.Sprintf("      %d. ", j+1)
				}
				cb.WriteString(candidateStyle.Render(trimmedTitle(prefix+candidateLabel(c), wrap)) + "\n")
			}
			cb.WriteString(helperStyle.Render("      esc dismiss") + "\n")
		}
	}
	return cursorLine
}

func (m *model) writeFullText(cb *contentBuilder, pv *paperView, wrap int) {
	if m.config.PDF == nil {
		return
	}
	cb.Blank()
	cb.WriteString(sectionHeaderStyle.Render("Full text") + "\n")
	switch {
	case pv.loading:
		cb.WriteString("  " + m.spinner.View() + " " + helperStyle.Render("Fetching PDF…") + "\n")
	case pv.err != "":
		cb.WriteString(errorStyle.Render(wordwrap.String("  "+pv.err, wrap)) + "\n")
	case pv.fullText != "":
		cb.WriteString(indentMultiline(wordwrap.String(pv.fullText, wrap), "  ") + "\n")
	default:
		cb.WriteString(helperStyle.Render("  t load a preview of the PDF") + "\n")
	}
}

func (m *model) statusView() string {
	width := m.layout.windowWidth
	var left string
	if kinds := m.runningKinds(); len(kinds) > 0 {
		left = m.spinner.View() + " " + helperStyle.Render(strings.Join(kinds, ", ")) + "  "
	}
	switch {
	case m.confirmDelete != nil:
		left += warnStyle.Render(fmt.Sprintf("Delete %s? y/n", m.confirmDelete.title))
	case m.errorMessage != "":
		left += errorStyle.Render(m.errorMessage)
	default:
		left += helperStyle.Render(m.infoMessage)
	}

	right := m.config.BackendURL
	if !m.snap.Refreshed.IsZero() {
		right = strings.TrimSpace(right + " · synced " + m.snap.Refreshed.Format("15:04:05"))
	}
	if right == "" {
		return lipgloss.NewStyle().MaxWidth(width).Render(left)
	}
	right = statusBarStyle.Render(right)
	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		left = lipgloss.NewStyle().MaxWidth(max(width-lipgloss.Width(right)-1, 0)).Render(left)
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *model) helpView() string {
	m.help.ShowAll = m.helpVisible
	return m.help.View(m.helpKeys())
}
